// Package mock provides in-memory ClientDirectory and UserDirectory
// implementations for testing.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/solstice-id/idp-oauth/directory"
)

// Directory is an in-memory client and user directory.
type Directory struct {
	mu      sync.RWMutex
	clients map[string]*directory.Client
	users   map[string]*directory.UserSummary
}

var (
	_ directory.ClientDirectory = (*Directory)(nil)
	_ directory.UserDirectory   = (*Directory)(nil)
)

// New creates an empty mock directory.
func New() *Directory {
	return &Directory{
		clients: make(map[string]*directory.Client),
		users:   make(map[string]*directory.UserSummary),
	}
}

// AddClient registers a client.
func (d *Directory) AddClient(client *directory.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[client.ID] = client
}

// AddUser registers a user.
func (d *Directory) AddUser(user *directory.UserSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

// GetClient resolves a client by ID.
func (d *Directory) GetClient(_ context.Context, clientID string) (*directory.Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	client, ok := d.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client not found")
	}
	cp := *client
	return &cp, nil
}

// VerifyClientSecret verifies a presented secret against the stored hash,
// comparing against a dummy hash when the client is unknown.
func (d *Directory) VerifyClientSecret(ctx context.Context, clientID, clientSecret string) error {
	d.mu.RLock()
	client, ok := d.clients[clientID]
	d.mu.RUnlock()

	storedHash := ""
	if ok {
		storedHash = client.SecretHash
	}
	return directory.VerifySecretHash(storedHash, clientSecret)
}

// GetUser resolves a user by ID.
func (d *Directory) GetUser(_ context.Context, userID string) (*directory.UserSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	cp := *user
	return &cp, nil
}
