package directory

import (
	"context"

	"robodata.org/internal/bus"
)

// NewAccount is the administrative input for account creation; the password
// arrives in plaintext and is hashed before it reaches the directory.
type NewAccount struct {
	Username    string
	Password    string
	DisplayName string
	Roles       []Role
}

// Admin is the user-administration surface over a Directory. It performs the
// mutation first and publishes the matching event only on success, carrying
// the acting administrator's username.
type Admin struct {
	dir Directory
	bus *bus.Bus
}

// NewAdmin wires an administration surface to the directory and event bus.
func NewAdmin(dir Directory, b *bus.Bus) *Admin {
	return &Admin{dir: dir, bus: b}
}

// CreateAccount hashes the password, adds the account, and publishes
// UserCreated.
func (a *Admin) CreateAccount(ctx context.Context, actor string, in NewAccount) error {
	hash, err := HashPassword(in.Password)
	if err != nil {
		return err
	}
	acct := Account{
		Username:     in.Username,
		PasswordHash: hash,
		DisplayName:  in.DisplayName,
		Roles:        append([]Role(nil), in.Roles...),
	}
	if err := a.dir.Add(ctx, acct); err != nil {
		return err
	}
	a.bus.Publish(bus.TypeUserCreated, bus.UserCreated{
		CreatedBy:   actor,
		Username:    acct.Username,
		DisplayName: acct.DisplayName,
		Roles:       roleStrings(acct.Roles),
	})
	return nil
}

// SetRoles replaces the account's role set and publishes UserRolesUpdated.
func (a *Admin) SetRoles(ctx context.Context, actor, username string, roles []Role) error {
	if err := a.dir.UpdateRoles(ctx, username, roles); err != nil {
		return err
	}
	target, err := a.dir.Find(ctx, username)
	if err != nil {
		return err
	}
	a.bus.Publish(bus.TypeUserRolesUpdated, bus.UserRolesUpdated{
		Operator:       actor,
		TargetUsername: target.Username,
		TargetName:     target.DisplayName,
		NewRoles:       roleStrings(target.Roles),
	})
	return nil
}

func roleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
