// Package jwt checks the shape of provider confirmation tokens and verifies
// provider-issued HS256 access tokens presented by dashboard administrators.
package jwt
