// Package permission models the three independent capabilities an admin can
// grant to a managed user.
package permission

import (
	"encoding/json"
	"fmt"
)

type Capability string

const (
	CanView   Capability = "can_view"
	CanEdit   Capability = "can_edit"
	CanDelete Capability = "can_delete"
)

var Capabilities = []Capability{CanView, CanEdit, CanDelete}

func ParseCapability(s string) (Capability, error) {
	for _, c := range Capabilities {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown capability %q", s)
}

// Set is the permission record of one user. A capability missing on the
// wire decodes as false.
type Set struct {
	CanView   bool `json:"can_view"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

func (s Set) Has(c Capability) bool {
	switch c {
	case CanView:
		return s.CanView
	case CanEdit:
		return s.CanEdit
	case CanDelete:
		return s.CanDelete
	}
	return false
}

// With returns a copy of s with capability c set to v.
func (s Set) With(c Capability, v bool) Set {
	switch c {
	case CanView:
		s.CanView = v
	case CanEdit:
		s.CanEdit = v
	case CanDelete:
		s.CanDelete = v
	}
	return s
}

// Flip inverts c and carries the other capabilities over unchanged.
func (s Set) Flip(c Capability) Set {
	return s.With(c, !s.Has(c))
}

// Envelope reads a permission set from either wire shape the service has
// used: a "permissions" object or a single "permission" object. The plural
// form wins when both are present.
type Envelope struct {
	Permissions *Set `json:"permissions,omitempty"`
	Permission  *Set `json:"permission,omitempty"`
}

func (e Envelope) Resolve() Set {
	if e.Permissions != nil {
		return *e.Permissions
	}
	if e.Permission != nil {
		return *e.Permission
	}
	return Set{}
}

// DecodeEnvelope extracts the permission set from a JSON document.
func DecodeEnvelope(data []byte) (Set, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Set{}, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return env.Resolve(), nil
}
