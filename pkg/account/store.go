package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// DB is the subset of the platform PostgreSQL client the stores need. It is
// satisfied by *postgres.Client (and therefore by pgxmock through
// postgres.NewFromPool).
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UserStore persists LocalUser records.
type UserStore struct {
	db DB
}

// NewUserStore creates a UserStore on top of an established database client.
func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new user and returns the stored record. The id is a
// fresh uuid v4. A duplicate email yields CONF_003.
func (s *UserStore) Create(ctx context.Context, p CreateUserParams) (*LocalUser, error) {
	u := &LocalUser{
		ID:           uuid.NewString(),
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		DisplayName:  p.DisplayName,
		AvatarURL:    p.AvatarURL,
		Confirmed:    p.Confirmed,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, avatar_url, confirmed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.AvatarURL, u.Confirmed)

	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, cberr.Newf(cberr.CodeConflictAlreadyExists,
				"account: email %q is already registered", p.Email)
		}
		return nil, cberr.Wrap(err, cberr.CodeInternalDatabase,
			"account: creating user failed")
	}
	return u, nil
}

// GetByID loads a user by id. An unknown id yields NF_002.
func (s *UserStore) GetByID(ctx context.Context, id string) (*LocalUser, error) {
	return s.getBy(ctx, "id = $1", id)
}

// GetByEmail loads a user by email. An unknown email yields NF_002.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*LocalUser, error) {
	return s.getBy(ctx, "email = $1", email)
}

func (s *UserStore) getBy(ctx context.Context, where string, arg any) (*LocalUser, error) {
	u := &LocalUser{}
	row := s.db.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, avatar_url, confirmed, created_at, updated_at
		FROM users
		WHERE `+where,
		arg)

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.AvatarURL, &u.Confirmed, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cberr.New(cberr.CodeNotFoundUser, "account: user not found")
		}
		return nil, cberr.Wrap(err, cberr.CodeInternalDatabase,
			"account: loading user failed")
	}
	return u, nil
}

// SetAvatar updates the user's avatar URL, typically after the mirror has
// copied the provider picture into object storage.
func (s *UserStore) SetAvatar(ctx context.Context, id, avatarURL string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET avatar_url = $2, updated_at = now() WHERE id = $1`,
		id, avatarURL)
	if err != nil {
		return cberr.Wrap(err, cberr.CodeInternalDatabase,
			"account: updating avatar failed")
	}
	if tag.RowsAffected() == 0 {
		return cberr.New(cberr.CodeNotFoundUser, "account: user not found")
	}
	return nil
}

// IdentityStore persists ExternalIdentity records and owns the atomic
// linking write.
type IdentityStore struct {
	db DB
}

// NewIdentityStore creates an IdentityStore on top of an established
// database client.
func NewIdentityStore(db DB) *IdentityStore {
	return &IdentityStore{db: db}
}

// GetBySubject loads the identity for a (provider, subject) pair. An
// unknown pair yields NF_001.
func (s *IdentityStore) GetBySubject(ctx context.Context, provider, subject string) (*ExternalIdentity, error) {
	id := &ExternalIdentity{}
	row := s.db.QueryRow(ctx, `
		SELECT provider, subject, user_id, display_name, avatar_url, linked_at, created_at
		FROM external_identities
		WHERE provider = $1 AND subject = $2`,
		provider, subject)

	err := row.Scan(&id.Provider, &id.Subject, &id.UserID, &id.DisplayName,
		&id.AvatarURL, &id.LinkedAt, &id.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cberr.NotFound("account: external identity not found")
		}
		return nil, cberr.Wrap(err, cberr.CodeInternalDatabase,
			"account: loading external identity failed")
	}
	return id, nil
}

// Link binds an external subject to a local user in a single conditional
// statement. It inserts the identity if absent, claims it if present but
// unlinked, and refreshes the mirrored profile if already linked to the
// same user. When the subject is linked to a different user, or the user
// already carries a different identity, Link returns CONF_002.
//
// The whole decision runs inside one INSERT ... ON CONFLICT statement, so
// two concurrent link attempts for the same subject against different
// users resolve to exactly one winner; there is no read-then-write window.
func (s *IdentityStore) Link(ctx context.Context, p LinkIdentityParams) (*ExternalIdentity, error) {
	id := &ExternalIdentity{
		Provider:    p.Provider,
		Subject:     p.Subject,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO external_identities (provider, subject, user_id, display_name, avatar_url, linked_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (provider, subject) DO UPDATE
		   SET user_id      = EXCLUDED.user_id,
		       display_name = EXCLUDED.display_name,
		       avatar_url   = EXCLUDED.avatar_url,
		       linked_at    = now()
		 WHERE external_identities.user_id IS NULL
		    OR external_identities.user_id = EXCLUDED.user_id
		RETURNING user_id, linked_at, created_at`,
		p.Provider, p.Subject, p.UserID, p.DisplayName, p.AvatarURL)

	err := row.Scan(&id.UserID, &id.LinkedAt, &id.CreatedAt)
	if err != nil {
		// No row returned: the conditional update declined because the
		// subject is linked to a different user. A unique violation on
		// the user_id index means this user already carries another
		// identity. Both are the same conflict to callers.
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return nil, cberr.New(cberr.CodeConflictAlreadyLinked,
				"account: external identity is already linked")
		}
		return nil, cberr.Wrap(err, cberr.CodeInternalDatabase,
			"account: linking external identity failed")
	}
	return id, nil
}

// TouchProfile refreshes the mirrored display name and avatar for an
// already-linked identity without changing the link itself.
func (s *IdentityStore) TouchProfile(ctx context.Context, provider, subject, displayName, avatarURL string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE external_identities
		   SET display_name = $3, avatar_url = $4
		 WHERE provider = $1 AND subject = $2`,
		provider, subject, displayName, avatarURL)
	if err != nil {
		return cberr.Wrap(err, cberr.CodeInternalDatabase,
			"account: refreshing identity profile failed")
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation anywhere in its chain.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
