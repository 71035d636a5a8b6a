package memory

import (
	"github.com/dropDatabas3/notesauth/internal/auth/authz"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

// Reference role ids. USER is what every new account receives.
const (
	RoleAdminID int64 = 2001
	RoleUserID  int64 = 2002
)

// ReferenceRoles mirrors the rows seeded by the PostgreSQL migrations.
func ReferenceRoles() []repository.Role {
	noteRead := repository.Authority{ID: 1001, Permission: authz.NoteRead}
	noteCreate := repository.Authority{ID: 1002, Permission: authz.NoteCreate}
	noteUpdate := repository.Authority{ID: 1003, Permission: authz.NoteUpdate}
	noteDelete := repository.Authority{ID: 1004, Permission: authz.NoteDelete}
	authorityCreate := repository.Authority{ID: 1005, Permission: authz.AuthorityCreate}

	return []repository.Role{
		{
			ID:          RoleAdminID,
			Name:        "ADMIN",
			Authorities: []repository.Authority{noteRead, noteCreate, noteUpdate, noteDelete, authorityCreate},
		},
		{
			ID:          RoleUserID,
			Name:        "USER",
			Authorities: []repository.Authority{noteRead, noteCreate, noteUpdate, noteDelete},
		},
	}
}
