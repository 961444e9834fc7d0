package account

import (
	"context"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// Schema is the DDL for the account tables. It is idempotent so it can be
// applied at startup in development and by the integration test harness;
// production deployments run it through the platform migration pipeline.
//
// The partial unique index on external_identities.user_id enforces "at most
// one ExternalIdentity per LocalUser" at the schema level; the linked
// direction ("exactly one LocalUser per linked ExternalIdentity") follows
// from user_id being a single nullable column.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL DEFAULT '',
    display_name  TEXT NOT NULL DEFAULT '',
    avatar_url    TEXT NOT NULL DEFAULT '',
    confirmed     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS external_identities (
    provider     TEXT NOT NULL,
    subject      TEXT NOT NULL,
    user_id      UUID REFERENCES users (id),
    display_name TEXT NOT NULL DEFAULT '',
    avatar_url   TEXT NOT NULL DEFAULT '',
    linked_at    TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (provider, subject)
);

CREATE UNIQUE INDEX IF NOT EXISTS external_identities_user_id_key
    ON external_identities (user_id)
    WHERE user_id IS NOT NULL;
`

// Migrate applies the account schema. It is safe to call repeatedly.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return cberr.Wrap(err, cberr.CodeInternalDatabase,
			"account: applying schema failed")
	}
	return nil
}
