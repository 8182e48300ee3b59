package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/ichat-server/internal/core"
	"github.com/vovakirdan/ichat-server/internal/store"
)

// UserLookup resolves the user a token was issued for.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// Verifier checks websocket credentials against the JWT config and the user table.
type Verifier struct {
	jwtConfig *JWTConfig
	users     UserLookup
}

// NewVerifier creates a credential verifier.
func NewVerifier(jwtConfig *JWTConfig, users UserLookup) *Verifier {
	return &Verifier{jwtConfig: jwtConfig, users: users}
}

// Verify implements core.Verifier. The returned identity has no friend set;
// the session manager loads it at admission.
func (v *Verifier) Verify(ctx context.Context, credential string) (*core.Identity, error) {
	if credential == "" {
		return nil, core.NewAuthError(core.AuthMissingCredential, nil)
	}

	claims, err := ValidateToken(v.jwtConfig, credential)
	if err != nil {
		return nil, core.NewAuthError(core.AuthInvalidCredential, err)
	}

	user, err := v.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, core.NewAuthError(core.AuthIdentityNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", claims.UserID, err)
	}

	return &core.Identity{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Avatar:   user.Avatar,
	}, nil
}
