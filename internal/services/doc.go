// Package services holds the admin dashboard's business rules on top of the
// repositories: paging, subscription expiry, role checks.
package services
