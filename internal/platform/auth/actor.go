package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Actor is the already-authenticated identity a mutating operation runs as.
// The booking engine performs ownership checks against it but never
// authenticates; authentication happened at the transport edge.
type Actor struct {
	ID    uuid.UUID
	Roles []string
}

// HasRole reports whether the actor carries the given role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// CanReadAll reports whether the actor may read bookings it does not own.
func (a Actor) CanReadAll() bool {
	return a.HasRole(RoleAdmin) || a.HasRole(RoleSupport)
}

// ActorFromContext builds an Actor from the identity the auth middleware
// stored on the context.
func ActorFromContext(ctx context.Context) (Actor, error) {
	sub := UserIDFromContext(ctx)
	if sub == "" {
		return Actor{}, fmt.Errorf("no authenticated user in context")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return Actor{}, fmt.Errorf("invalid subject %q: %w", sub, err)
	}
	return Actor{ID: id, Roles: RolesFromContext(ctx)}, nil
}
