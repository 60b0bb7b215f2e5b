// Package models holds the admin dashboard's records and request payloads.
package models
