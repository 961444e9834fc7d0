// Package account holds the durable identity state of the Cookbase
// platform: local user accounts, their federated external identities, and
// the supporting services (password hashing, avatar mirroring).
//
// Persistence is PostgreSQL via the platform client in pkg/clients/postgres.
// The one-to-one invariant between a LocalUser and a linked
// ExternalIdentity is enforced by single conditional SQL statements, never
// by read-then-write sequences, so concurrent link attempts for the same
// external subject cannot both succeed.
package account

import (
	"time"
)

// LocalUser is a Cookbase account. A user is created either at password
// sign-up or auto-provisioned at first federated login; in the latter case
// PasswordHash is empty and the account can only authenticate through its
// linked external identity until a password is set.
type LocalUser struct {
	// ID is the user's uuid, minted at creation. It is the subject of
	// every bearer token issued for this user.
	ID string `json:"id"`

	// Email is unique across all users. Auto-provisioned federated
	// accounts store the provider-reported email when present.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password, empty for
	// accounts that have never set one. Never serialized.
	PasswordHash string `json:"-"`

	// DisplayName is the name shown across the platform.
	DisplayName string `json:"display_name"`

	// AvatarURL points at the user's profile picture, typically the
	// mirrored object-storage copy rather than a provider CDN URL.
	AvatarURL string `json:"avatar_url,omitempty"`

	// Confirmed reports whether the account's email has been confirmed.
	// Federated sign-ups are confirmed implicitly; password sign-ups
	// start unconfirmed.
	Confirmed bool `json:"confirmed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserParams carries the fields for creating a LocalUser. ID and
// timestamps are assigned by the store.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	DisplayName  string
	AvatarURL    string
	Confirmed    bool
}
