// Package actorctx carries the authenticated caller on a context.Context so
// services see who is acting without depending on the HTTP layer.
package actorctx

import (
	"context"

	"github.com/geocoder89/attendance/internal/domain/user"
)

type Actor struct {
	UserID             string
	Email              string
	Role               user.Role
	MustChangePassword bool
}

func (a Actor) Can(c user.Capability) bool {
	return a.Role.Can(c)
}

type actorKey struct{}

func With(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func From(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.UserID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	a, ok := From(ctx)
	return a.UserID, ok
}
