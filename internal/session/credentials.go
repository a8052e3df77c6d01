package session

import (
	"context"
	"sync"

	"github.com/sedaguven/davon-library-system/internal/models"
)

// Credentials is what a session keeps across restarts
type Credentials struct {
	Token    string
	Identity *models.Identity
}

// CredentialStore is the durable client storage behind a Store
type CredentialStore interface {
	// Load returns empty credentials when nothing is stored
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
}

// MemoryCredentials keeps credentials in process memory
type MemoryCredentials struct {
	mu    sync.Mutex
	creds Credentials
}

// NewMemoryCredentials creates an empty in-memory credential store
func NewMemoryCredentials() *MemoryCredentials {
	return &MemoryCredentials{}
}

func (m *MemoryCredentials) Load(ctx context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyCredentials(m.creds), nil
}

func (m *MemoryCredentials) Save(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = copyCredentials(creds)
	return nil
}

func (m *MemoryCredentials) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = Credentials{}
	return nil
}

func copyCredentials(c Credentials) Credentials {
	out := Credentials{Token: c.Token}
	if c.Identity != nil {
		id := *c.Identity
		out.Identity = &id
	}
	return out
}
