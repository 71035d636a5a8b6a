package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

type queries struct {
	db querier
}

// linkTable describes the per-provider link table.
type linkTable struct {
	name, displayCol, imageCol string
}

func tableFor(provider repository.AuthMethod) (linkTable, error) {
	switch provider {
	case repository.MethodGitHub:
		return linkTable{"auth_github", "login", "avatar_url"}, nil
	case repository.MethodGoogle:
		return linkTable{"auth_google", "display_name", "picture_url"}, nil
	}
	return linkTable{}, fmt.Errorf("%w: no link table for %q", repository.ErrInvalidInput, provider)
}

func (q queries) FindLinkByExternalID(ctx context.Context, provider repository.AuthMethod, externalID string) (*repository.ProviderLink, error) {
	t, err := tableFor(provider)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id::text, user_id::text, external_id, %s, %s, created_at
		FROM %s WHERE external_id = $1`, t.displayCol, t.imageCol, t.name)

	l := repository.ProviderLink{Provider: provider}
	err = q.db.QueryRow(ctx, query, externalID).Scan(
		&l.ID, &l.UserID, &l.ExternalID, &l.Display.Name, &l.Display.ImageURL, &l.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

const userSelect = `
	SELECT u.id::text, u.email, u.password, u.authentication_method, u.created_at,
	       COALESCE(array_agg(ur.role_id ORDER BY ur.role_id) FILTER (WHERE ur.role_id IS NOT NULL), '{}')
	FROM security_user u
	LEFT JOIN user_role ur ON ur.user_id = u.id
`

func (q queries) scanUser(ctx context.Context, where string, arg any) (*repository.User, error) {
	var (
		u      repository.User
		method string
	)
	err := q.db.QueryRow(ctx, userSelect+where+" GROUP BY u.id", arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &method, &u.CreatedAt, &u.RoleIDs,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	u.AuthMethod = repository.AuthMethod(method)
	return &u, nil
}

func (q queries) FindUserByID(ctx context.Context, id string) (*repository.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.ErrNotFound
	}
	return q.scanUser(ctx, "WHERE u.id = $1", uid)
}

func (q queries) FindUserByEmail(ctx context.Context, email string) (*repository.User, error) {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return nil, repository.ErrNotFound
	}
	return q.scanUser(ctx, "WHERE lower(u.email) = $1", email)
}

// CreateUser must run inside a transaction; Store.CreateUser opens one.
func (q queries) CreateUser(ctx context.Context, u *repository.User) (*repository.User, error) {
	if u == nil || !u.AuthMethod.Valid() {
		return nil, repository.ErrInvalidInput
	}
	out := *u
	out.Email = repository.NormalizeEmail(u.Email)
	if out.Email == "" {
		return nil, repository.ErrInvalidInput
	}
	id := uuid.New()
	out.ID = id.String()

	err := q.db.QueryRow(ctx, `
		INSERT INTO security_user (id, email, password, authentication_method)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		id, out.Email, out.PasswordHash, string(out.AuthMethod),
	).Scan(&out.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}

	for _, rid := range u.RoleIDs {
		if _, err := q.db.Exec(ctx,
			`INSERT INTO user_role (user_id, role_id) VALUES ($1, $2)`, id, rid,
		); err != nil {
			return nil, mapErr(err)
		}
	}
	out.RoleIDs = append([]int64(nil), u.RoleIDs...)
	return &out, nil
}

func (q queries) CreateLink(ctx context.Context, l *repository.ProviderLink) (*repository.ProviderLink, error) {
	if l == nil || l.ExternalID == "" {
		return nil, repository.ErrInvalidInput
	}
	t, err := tableFor(l.Provider)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(l.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q", repository.ErrInvalidInput, l.UserID)
	}

	out := *l
	id := uuid.New()
	out.ID = id.String()
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, external_id, %s, %s)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`, t.name, t.displayCol, t.imageCol)

	if err := q.db.QueryRow(ctx, query,
		id, userID, l.ExternalID, l.Display.Name, l.Display.ImageURL,
	).Scan(&out.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (q queries) FindRoleByID(ctx context.Context, id int64) (*repository.Role, error) {
	r := repository.Role{ID: id}
	if err := q.db.QueryRow(ctx, `SELECT name FROM role WHERE id = $1`, id).Scan(&r.Name); err != nil {
		return nil, mapErr(err)
	}

	rows, err := q.db.Query(ctx, `
		SELECT a.id, a.permission
		FROM authority a
		JOIN role_authority ra ON ra.authority_id = a.id
		WHERE ra.role_id = $1
		ORDER BY a.id`, id)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var a repository.Authority
		if err := rows.Scan(&a.ID, &a.Permission); err != nil {
			return nil, err
		}
		r.Authorities = append(r.Authorities, a)
	}
	return &r, rows.Err()
}
