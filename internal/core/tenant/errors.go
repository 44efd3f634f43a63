package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when tenant does not exist in the registry.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantNotActive is returned when tenant exists but is not active.
	ErrTenantNotActive = errors.New("tenant is not active")

	// ErrSlugTaken is returned when another tenant already uses the slug.
	ErrSlugTaken = errors.New("tenant slug already exists")
)
