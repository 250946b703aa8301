package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/resumepilot/internal/core/kv"
	"github.com/colonyops/resumepilot/internal/core/session"
)

const credentialKey = "token"

// CredentialStore persists the bearer credential under "session:token".
type CredentialStore struct {
	tokens *kv.TypedKV[string]
	now    func() time.Time
}

var _ session.Store = (*CredentialStore)(nil)

// NewCredentialStore creates a credential store on top of store.
func NewCredentialStore(store kv.KV) *CredentialStore {
	return &CredentialStore{
		tokens: kv.Scoped[string](store, "session"),
		now:    time.Now,
	}
}

// LoadCredential returns the stored token or "" when none is stored.
func (c *CredentialStore) LoadCredential(ctx context.Context) (string, error) {
	token, _, err := c.tokens.Lookup(ctx, credentialKey)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return token, nil
}

// SaveCredential stores token. JWTs carrying exp expire from the store at
// the same moment.
func (c *CredentialStore) SaveCredential(ctx context.Context, token string) error {
	var err error
	if exp, ok := session.Expiry(token); ok && exp.After(c.now()) {
		err = c.tokens.SetTTL(ctx, credentialKey, token, exp.Sub(c.now()))
	} else {
		err = c.tokens.Set(ctx, credentialKey, token)
	}
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// ClearCredential removes the stored token.
func (c *CredentialStore) ClearCredential(ctx context.Context) error {
	if err := c.tokens.Delete(ctx, credentialKey); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
