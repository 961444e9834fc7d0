package account

import (
	"time"
)

// ExternalIdentity records a federated identity observed by the platform.
// The (provider, subject) pair is globally unique. UserID is nil while the
// identity is discovered but not yet linked to a local account.
//
// Invariant: at most one ExternalIdentity per LocalUser, and exactly one
// LocalUser per linked ExternalIdentity. Both directions are enforced by
// the store's conditional writes together with the schema's unique
// indexes.
type ExternalIdentity struct {
	// Provider identifies the identity provider, e.g. "line".
	Provider string `json:"provider"`

	// Subject is the provider-scoped stable subject identifier (the
	// token's sub claim).
	Subject string `json:"subject"`

	// UserID references the linked LocalUser, nil when unlinked.
	UserID *string `json:"user_id,omitempty"`

	// DisplayName and AvatarURL mirror the provider profile as of the
	// most recent login or link.
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`

	// LinkedAt is when the identity was linked to UserID, nil when
	// unlinked.
	LinkedAt *time.Time `json:"linked_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Linked reports whether the identity is bound to a local user.
func (i *ExternalIdentity) Linked() bool {
	return i.UserID != nil
}

// LinkIdentityParams carries the fields for linking an external subject to
// a local user, including the profile mirrored from the verified token.
type LinkIdentityParams struct {
	Provider    string
	Subject     string
	UserID      string
	DisplayName string
	AvatarURL   string
}
