// Package user is the admin's view of managed user accounts and their
// permissions.
package user

import (
	"context"
	"encoding/json"

	"github.com/frahmantamala/ledger-console/internal/permission"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

// ManagedUser is an account as the user list shows it.
type ManagedUser struct {
	viewmodel.Identity
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Role        session.Role   `json:"role"`
	Permissions permission.Set `json:"permissions"`
}

// UnmarshalJSON reads the permission set under either field name the
// service uses, so a toggle always starts from the user's real grants.
func (u *ManagedUser) UnmarshalJSON(data []byte) error {
	type plain ManagedUser
	var rec plain
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	var env permission.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	rec.Permissions = env.Resolve()
	*u = ManagedUser(rec)
	return nil
}

func (u ManagedUser) WithRecordID(id string) ManagedUser {
	u.Identity = u.Identity.WithID(id)
	return u
}

// NewUser is the create-user form.
type NewUser struct {
	Name     string       `json:"name" validate:"required"`
	Email    string       `json:"email" validate:"required,email"`
	Password string       `json:"password" validate:"required,min=6"`
	Role     session.Role `json:"role" validate:"required,oneof=user admin"`
}

// managedOnly hides admin accounts from the list. A created admin is
// reported as a bare acknowledgement so the list is reloaded, and filtered.
type managedOnly struct {
	viewmodel.Remote[ManagedUser]
}

func (m managedOnly) List(ctx context.Context, token string) ([]ManagedUser, error) {
	users, err := m.Remote.List(ctx, token)
	if err != nil {
		return nil, err
	}
	out := make([]ManagedUser, 0, len(users))
	for _, u := range users {
		if u.Role != session.RoleAdmin {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m managedOnly) Create(ctx context.Context, token string, draft interface{}) (*ManagedUser, error) {
	created, err := m.Remote.Create(ctx, token, draft)
	if err != nil || created == nil {
		return created, err
	}
	if created.Role == session.RoleAdmin {
		return nil, nil
	}
	return created, nil
}
