package middleware

import (
	"context"
	"errors"
	"strings"

	"hiddystays/internal/app/commands"
	"hiddystays/internal/app/queries"
)

var ErrUnauthenticated = errors.New("middleware: authenticated actor required")

// ActorMessage is implemented by commands and queries issued on behalf of a
// signed-in user.
type ActorMessage interface {
	ActorID() string
}

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// RequireActor rejects actor messages that arrive without an actor id.
// Ownership is checked by each handler against the loaded aggregate.
type RequireActor struct{}

func (RequireActor) Authorize(_ context.Context, message any) error {
	if m, ok := message.(ActorMessage); ok && strings.TrimSpace(m.ActorID()) == "" {
		return ErrUnauthenticated
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
