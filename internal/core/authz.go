package core

// authz.go resolves tenant roles and gates mutations.
//
// Roles are computed fresh for every request from the membership source;
// nothing here caches a "current role".

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role is a tenant-scoped permission level.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ParseRole converts a stored role string. Unknown values resolve to
// RoleUser, the least privileged level.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	default:
		return RoleUser
	}
}

// Membership is one user's stored membership in a tenant.
type Membership struct {
	UserID    string `json:"userId"`
	TenantID  string `json:"tenantId"`
	Role      Role   `json:"role"`
	IsOwner   bool   `json:"isOwner"`
	IsPrimary bool   `json:"isPrimary"`
}

// EffectiveRole is a membership after the owner rule is applied.
type EffectiveRole struct {
	TenantID   string `json:"tenantId"`
	Role       Role   `json:"role"`
	StoredRole Role   `json:"storedRole"`
	IsOwner    bool   `json:"isOwner"`
	IsPrimary  bool   `json:"isPrimary"`
}

// Resolve applies the owner rule: a tenant owner is an admin regardless
// of the stored role.
func (m Membership) Resolve() EffectiveRole {
	stored := ParseRole(string(m.Role))
	eff := EffectiveRole{
		TenantID:   m.TenantID,
		Role:       stored,
		StoredRole: stored,
		IsOwner:    m.IsOwner,
		IsPrimary:  m.IsPrimary,
	}
	if m.IsOwner {
		eff.Role = RoleAdmin
	}
	return eff
}

// Satisfies reports whether the role passes an action that requires required.
//
//	admin   passes only admin
//	manager passes admin or manager
//	user    passes any role
func (e EffectiveRole) Satisfies(required Role) bool {
	switch required {
	case RoleAdmin:
		return e.Role == RoleAdmin
	case RoleManager:
		return e.Role == RoleAdmin || e.Role == RoleManager
	case RoleUser:
		return e.Role == RoleAdmin || e.Role == RoleManager || e.Role == RoleUser
	default:
		return false
	}
}

// IsAdmin reports admin-equivalent capability.
func (e EffectiveRole) IsAdmin() bool { return e.Satisfies(RoleAdmin) }

// CanMutate reports whether actorID may change a record owned by
// targetOwnerID. Owners of a record may always change it; anyone else
// needs admin-equivalent privilege.
func (e EffectiveRole) CanMutate(actorID, targetOwnerID string) bool {
	if actorID != "" && targetOwnerID == actorID {
		return true
	}
	return e.IsAdmin()
}

// Guard answers authorization questions against a MembershipSource.
type Guard struct {
	members MembershipSource
}

// NewGuard creates a guard backed by members.
func NewGuard(members MembershipSource) *Guard {
	return &Guard{members: members}
}

// EffectiveRole looks up the actor's membership and applies the owner rule.
// Returns ErrNotMember when the actor has no membership in the tenant.
func (g *Guard) EffectiveRole(ctx context.Context, actor Actor, tenantID string) (EffectiveRole, error) {
	if actor.ID == "" {
		return EffectiveRole{}, ErrNotMember
	}
	m, err := g.members.GetMembership(ctx, tenantID, actor.ID)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			return EffectiveRole{}, ErrNotMember
		}
		return EffectiveRole{}, fmt.Errorf("get membership: %w", err)
	}
	return m.Resolve(), nil
}

// Require resolves the actor's role and fails with a PermissionError when
// it does not satisfy required.
func (g *Guard) Require(ctx context.Context, actor Actor, tenantID string, required Role) (EffectiveRole, error) {
	eff, err := g.EffectiveRole(ctx, actor, tenantID)
	if err != nil {
		return EffectiveRole{}, err
	}
	if !eff.Satisfies(required) {
		return eff, &PermissionError{
			ActorID:  actor.ID,
			TenantID: tenantID,
			Reason:   fmt.Sprintf("requires %s role, have %s", required, eff.Role),
		}
	}
	return eff, nil
}

// CanMutate resolves the actor's role and applies the record ownership rule.
func (g *Guard) CanMutate(ctx context.Context, actor Actor, tenantID, targetOwnerID string) (bool, error) {
	eff, err := g.EffectiveRole(ctx, actor, tenantID)
	if err != nil {
		return false, err
	}
	return eff.CanMutate(actor.ID, targetOwnerID), nil
}

// authorizeMutation is CanMutate for an already resolved role, returning a
// PermissionError on denial.
func authorizeMutation(eff EffectiveRole, actor Actor, tenantID, targetOwnerID string) error {
	if eff.CanMutate(actor.ID, targetOwnerID) {
		return nil
	}
	return &PermissionError{
		ActorID:  actor.ID,
		TenantID: tenantID,
		Reason:   fmt.Sprintf("record is owned by %s", targetOwnerID),
	}
}
