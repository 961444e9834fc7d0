package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cookbase/cookbase-auth/pkg/account"
	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// DefaultProvider is the provider label recorded on external identities.
const DefaultProvider = "line"

// IdentityAccess is the identity-store surface the linker needs. Satisfied
// by *account.IdentityStore.
type IdentityAccess interface {
	GetBySubject(ctx context.Context, provider, subject string) (*account.ExternalIdentity, error)
	Link(ctx context.Context, p account.LinkIdentityParams) (*account.ExternalIdentity, error)
	TouchProfile(ctx context.Context, provider, subject, displayName, avatarURL string) error
}

var _ IdentityAccess = (*account.IdentityStore)(nil)

// UserAccess is the user-store surface the linker needs. Satisfied by
// *account.UserStore.
type UserAccess interface {
	Create(ctx context.Context, p account.CreateUserParams) (*account.LocalUser, error)
	GetByID(ctx context.Context, id string) (*account.LocalUser, error)
	SetAvatar(ctx context.Context, id, avatarURL string) error
}

var _ UserAccess = (*account.UserStore)(nil)

// AvatarMirrorer copies provider profile pictures into object storage.
// Satisfied by *account.AvatarMirror; nil disables mirroring.
type AvatarMirrorer interface {
	Mirror(ctx context.Context, provider, subject, sourceURL string) (string, error)
	URL(ctx context.Context, objectName string) (string, error)
}

var _ AvatarMirrorer = (*account.AvatarMirror)(nil)

// Linker maps verified external subjects to local users. It auto-provisions
// accounts on first federated login and binds identities to existing
// accounts on explicit link requests, delegating the one-to-one invariant
// to the identity store's conditional write.
type Linker struct {
	verifier   *Verifier
	identities IdentityAccess
	users      UserAccess
	mirror     AvatarMirrorer
	clientID   string
	provider   string
	logger     *slog.Logger
}

// NewLinker creates a Linker verifying audiences against clientID. mirror
// may be nil; mirroring is best-effort and never blocks a login. A nil
// logger falls back to slog.Default.
func NewLinker(verifier *Verifier, identities IdentityAccess, users UserAccess, mirror AvatarMirrorer, clientID string, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{
		verifier:   verifier,
		identities: identities,
		users:      users,
		mirror:     mirror,
		clientID:   clientID,
		provider:   DefaultProvider,
		logger:     logger,
	}
}

// AuthenticateWithIDToken verifies the identity token and resolves it to a
// local user. A subject already linked returns its user; an unlinked or
// unseen subject auto-provisions a fresh account and links it.
func (l *Linker) AuthenticateWithIDToken(ctx context.Context, rawIDToken, expectedNonce string) (*account.LocalUser, *account.ExternalIdentity, error) {
	claims, err := l.verifier.Verify(ctx, rawIDToken, l.clientID, expectedNonce)
	if err != nil {
		return nil, nil, err
	}

	identity, err := l.identities.GetBySubject(ctx, l.provider, claims.Subject)
	switch {
	case err == nil && identity.Linked():
		user, err := l.users.GetByID(ctx, *identity.UserID)
		if err != nil {
			return nil, nil, err
		}
		l.refreshProfile(ctx, claims)
		return user, identity, nil

	case err == nil || cberr.HasCode(err, cberr.CodeNotFound):
		// Discovered-but-unlinked or never seen: provision and link.
		return l.provision(ctx, claims)

	default:
		return nil, nil, err
	}
}

// LinkUser binds the verified subject to an already-authenticated user.
// Returns CONF_002 when the subject belongs to a different user or the
// user already carries another identity.
func (l *Linker) LinkUser(ctx context.Context, userID, rawIDToken, expectedNonce string) (*account.ExternalIdentity, error) {
	claims, err := l.verifier.Verify(ctx, rawIDToken, l.clientID, expectedNonce)
	if err != nil {
		return nil, err
	}

	identity, err := l.identities.Link(ctx, account.LinkIdentityParams{
		Provider:    l.provider,
		Subject:     claims.Subject,
		UserID:      userID,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	})
	if err != nil {
		return nil, err
	}

	l.mirrorAvatar(ctx, userID, claims)
	return identity, nil
}

// provision creates a local account for the claims and links the subject
// to it. When the conditional link loses a race to a concurrent login for
// the same subject, the winner's link is honored and its user returned.
func (l *Linker) provision(ctx context.Context, claims *IdentityClaims) (*account.LocalUser, *account.ExternalIdentity, error) {
	user, err := l.users.Create(ctx, account.CreateUserParams{
		Email:       l.emailFor(claims),
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
		// The provider authenticated the user; no confirmation mail cycle.
		Confirmed: true,
	})
	if err != nil {
		return nil, nil, err
	}

	identity, err := l.identities.Link(ctx, account.LinkIdentityParams{
		Provider:    l.provider,
		Subject:     claims.Subject,
		UserID:      user.ID,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	})
	if err != nil {
		if cberr.HasCode(err, cberr.CodeConflictAlreadyLinked) {
			l.logger.WarnContext(ctx, "lost provisioning race, resolving winner",
				"subject", claims.Subject, "orphaned_user", user.ID)
			return l.resolveExisting(ctx, claims.Subject)
		}
		return nil, nil, err
	}

	l.mirrorAvatar(ctx, user.ID, claims)
	return user, identity, nil
}

// resolveExisting returns the user a concurrently linked subject ended up
// bound to.
func (l *Linker) resolveExisting(ctx context.Context, subject string) (*account.LocalUser, *account.ExternalIdentity, error) {
	identity, err := l.identities.GetBySubject(ctx, l.provider, subject)
	if err != nil {
		return nil, nil, err
	}
	if !identity.Linked() {
		return nil, nil, cberr.New(cberr.CodeInternal,
			"auth: identity reported linked but carries no user")
	}
	user, err := l.users.GetByID(ctx, *identity.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, identity, nil
}

// refreshProfile mirrors the latest provider display name and picture onto
// an existing identity. Best-effort.
func (l *Linker) refreshProfile(ctx context.Context, claims *IdentityClaims) {
	if claims.Name == "" && claims.Picture == "" {
		return
	}
	err := l.identities.TouchProfile(ctx, l.provider, claims.Subject, claims.Name, claims.Picture)
	if err != nil {
		l.logger.WarnContext(ctx, "refreshing identity profile failed",
			"subject", claims.Subject, "error", err)
	}
}

// mirrorAvatar copies the provider picture into object storage and points
// the account at the mirrored copy. Best-effort; a CDN hiccup never fails
// a login or link.
func (l *Linker) mirrorAvatar(ctx context.Context, userID string, claims *IdentityClaims) {
	if l.mirror == nil || claims.Picture == "" {
		return
	}

	objectName, err := l.mirror.Mirror(ctx, l.provider, claims.Subject, claims.Picture)
	if err != nil {
		l.logger.WarnContext(ctx, "mirroring avatar failed",
			"subject", claims.Subject, "error", err)
		return
	}
	avatarURL, err := l.mirror.URL(ctx, objectName)
	if err != nil {
		l.logger.WarnContext(ctx, "presigning mirrored avatar failed",
			"object", objectName, "error", err)
		return
	}
	if err := l.users.SetAvatar(ctx, userID, avatarURL); err != nil {
		l.logger.WarnContext(ctx, "storing mirrored avatar failed",
			"user", userID, "error", err)
	}
}

// emailFor picks the account email for auto-provisioning. The provider
// does not always release an email; a synthetic per-subject address keeps
// the users.email uniqueness constraint satisfied.
func (l *Linker) emailFor(claims *IdentityClaims) string {
	if claims.Email != "" {
		return claims.Email
	}
	return fmt.Sprintf("%s@%s.users.cookbase.app", claims.Subject, l.provider)
}
