package auth

import (
	"encoding/base64"
	"encoding/json"

	"github.com/cookbase/cookbase-auth/pkg/account"
	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// Metadata keys for identity propagation between Cookbase services. The
// recipe, reminder, and LLM services receive the resolved user over gRPC
// metadata so they can attribute work without re-running the account
// lookup; they still validate the bearer token itself.
//
// Custom keys use the "x-" prefix. The profile value is base64url-encoded
// JSON for transport safety.
const (
	// MetadataAuthorization is the standard authorization key carrying the
	// bearer token, the credential the receiving service validates.
	MetadataAuthorization = "authorization"

	// MetadataUserID carries the resolved local user id.
	MetadataUserID = "x-cookbase-user-id"

	// MetadataUserProfile carries the resolved user profile as
	// base64url-encoded JSON. Transport safety only, not confidentiality;
	// the profile never includes credentials.
	MetadataUserProfile = "x-cookbase-user-profile"

	// MetadataCallerService names the immediate upstream service for audit
	// logs.
	MetadataCallerService = "x-cookbase-caller"
)

// MaxMetadataValueSize caps a single serialized metadata value. 8 KB stays
// under the default HTTP/2 header list limits of every transport in the
// platform.
const MaxMetadataValueSize = 8192

// propagatedProfile is the wire shape of the user profile in metadata.
type propagatedProfile struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Confirmed   bool   `json:"confirmed,omitempty"`
}

// SerializeUserProfile encodes the propagatable part of a user as a
// base64url JSON string. Returns the empty string for a nil user.
func SerializeUserProfile(user *account.LocalUser) (string, error) {
	if user == nil {
		return "", nil
	}
	data, err := json.Marshal(propagatedProfile{
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Confirmed:   user.Confirmed,
	})
	if err != nil {
		return "", cberr.Wrap(err, cberr.CodeInternal,
			"auth: marshaling user profile failed")
	}
	encoded := base64.RawURLEncoding.EncodeToString(data)
	if len(encoded) > MaxMetadataValueSize {
		return "", cberr.Newf(cberr.CodeInternal,
			"auth: serialized profile size %d exceeds maximum %d bytes",
			len(encoded), MaxMetadataValueSize)
	}
	return encoded, nil
}

// DeserializeUserProfile decodes a propagated profile onto a user skeleton
// carrying the given id. Returns a user with only the id set when encoded
// is empty.
func DeserializeUserProfile(id, encoded string) (*account.LocalUser, error) {
	user := &account.LocalUser{ID: id}
	if encoded == "" {
		return user, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeValidationFormat,
			"auth: decoding propagated profile failed")
	}
	var profile propagatedProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, cberr.Wrap(err, cberr.CodeValidationFormat,
			"auth: unmarshaling propagated profile failed")
	}

	user.Email = profile.Email
	user.DisplayName = profile.DisplayName
	user.AvatarURL = profile.AvatarURL
	user.Confirmed = profile.Confirmed
	return user, nil
}
