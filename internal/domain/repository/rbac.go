package repository

// Authority is one atomic permission, e.g. "note.create".
type Authority struct {
	ID         int64
	Permission string
}

// Role groups authorities. Roles and authorities are reference data seeded by
// deployment tooling; the core only reads them.
type Role struct {
	ID          int64
	Name        string
	Authorities []Authority
}
