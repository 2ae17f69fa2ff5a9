// Package directory holds account records and supplies credential lookup
// for login. Accounts are never physically deleted.
package directory

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrNotFound      = errors.New("directory: not found")
	ErrAlreadyExists = errors.New("directory: already exists")
	ErrInvalidInput  = errors.New("directory: invalid input")
)

// Role gates which workspaces are reachable.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleReviewer  Role = "reviewer"
	RoleCollector Role = "collector"
)

// ValidRole reports whether r is one of the three known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleReviewer, RoleCollector:
		return true
	}
	return false
}

// Account is a directory record. Roles keep insertion order; the first role
// is the one a fresh session activates.
type Account struct {
	Username     string
	PasswordHash string
	DisplayName  string
	Roles        []Role
}

// Directory is the account store boundary consumed by the session manager
// and the user-administration surface.
type Directory interface {
	// FindByCredentials returns the account matching username and
	// password. It reports ErrNotFound for unknown user and wrong
	// password alike.
	FindByCredentials(ctx context.Context, username, password string) (Account, error)
	Add(ctx context.Context, a Account) error
	UpdateRoles(ctx context.Context, username string, roles []Role) error
	Find(ctx context.Context, username string) (Account, error)
	List(ctx context.Context) ([]Account, error)
}

// InMemory implements Directory with a mutex-guarded map plus an ordered
// username list so List is deterministic.
type InMemory struct {
	mu    sync.RWMutex
	accts map[string]Account
	order []string
}

var _ Directory = (*InMemory)(nil)

// NewInMemory creates an empty directory.
func NewInMemory() *InMemory {
	return &InMemory{accts: make(map[string]Account)}
}

func (d *InMemory) FindByCredentials(ctx context.Context, username, password string) (Account, error) {
	d.mu.RLock()
	a, ok := d.accts[username]
	d.mu.RUnlock()
	if !ok {
		return Account{}, ErrNotFound
	}
	if err := VerifyPassword(a.PasswordHash, password); err != nil {
		return Account{}, ErrNotFound
	}
	return cloneAccount(a), nil
}

func (d *InMemory) Add(ctx context.Context, a Account) error {
	if err := validateAccount(a); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.accts[a.Username]; ok {
		return ErrAlreadyExists
	}
	d.accts[a.Username] = cloneAccount(a)
	d.order = append(d.order, a.Username)
	return nil
}

func (d *InMemory) UpdateRoles(ctx context.Context, username string, roles []Role) error {
	if len(roles) == 0 {
		return ErrInvalidInput
	}
	for _, r := range roles {
		if !ValidRole(r) {
			return ErrInvalidInput
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accts[username]
	if !ok {
		return ErrNotFound
	}
	a.Roles = append([]Role(nil), roles...)
	d.accts[username] = a
	return nil
}

func (d *InMemory) Find(ctx context.Context, username string) (Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accts[username]
	if !ok {
		return Account{}, ErrNotFound
	}
	return cloneAccount(a), nil
}

func (d *InMemory) List(ctx context.Context) ([]Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Account, 0, len(d.order))
	for _, u := range d.order {
		out = append(out, cloneAccount(d.accts[u]))
	}
	return out, nil
}

func validateAccount(a Account) error {
	if strings.TrimSpace(a.Username) == "" {
		return ErrInvalidInput
	}
	if len(a.Roles) == 0 {
		return ErrInvalidInput
	}
	for _, r := range a.Roles {
		if !ValidRole(r) {
			return ErrInvalidInput
		}
	}
	return nil
}

func cloneAccount(a Account) Account {
	a.Roles = append([]Role(nil), a.Roles...)
	return a
}
