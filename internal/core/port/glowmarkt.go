package port

import (
	"context"
	"errors"
	"time"

	"glow2mqtt/pkg/glowmarkt"
)

// GlowClient is the slice of the metering API a session actor drives.
type GlowClient interface {
	Authenticate(ctx context.Context, username, password string) (*glowmarkt.Auth, error)
	SetToken(token string)
	RetrieveResources(ctx context.Context) ([]glowmarkt.Resource, error)
	CurrentUsage(ctx context.Context, resourceID string) (*glowmarkt.Reading, error)
}

var ErrCredentialNotFound = errors.New("credential not found")

// Credential is the durable per-account state: the last known bearer token.
// Username/password stay in config; only the refreshed token is rewritten.
type Credential struct {
	Username string    `json:"username"`
	Token    string    `json:"token"`
	Issued   time.Time `json:"issued"`
}

// CredentialStore persists refreshed tokens across restarts, keyed by the
// configured account name.
type CredentialStore interface {
	Load(account string) (Credential, error)
	Save(account string, cred Credential) error
}
