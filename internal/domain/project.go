package domain

import "time"

// Project is the read-only project view consumed by the reporting pipeline.
// Ownership of project CRUD lives elsewhere; this service only resolves and
// reads.
type Project struct {
	ID          string
	TenantID    string
	PublicID    string
	Name        string
	Description string
	ClientName  string
	ClientEmail string
	Slug        string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
