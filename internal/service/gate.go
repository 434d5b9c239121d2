package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// resolveLimit caps concurrent store reads when a list of references is
// turned into entities.
const resolveLimit = 8

// requireCaller fails with Unauthenticated when no caller identity was
// resolved. Every mutation calls it before touching the store.
func requireCaller(callerID string) error {
	if callerID == "" {
		return apperror.Unauthenticated()
	}
	return nil
}

// callerUser passes the gate and loads the caller's user row, which supplies
// the display name copied onto whatever the caller writes.
func callerUser(ctx context.Context, users repository.UserRepository, callerID string) (*model.User, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	u, err := users.GetUserByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Missing("User not found")
		}
		return nil, err
	}
	return u, nil
}

// ensureOwner compares the caller against a stored owner id.
func ensureOwner(callerID, ownerID string) error {
	if callerID != ownerID {
		return apperror.Unauthorized()
	}
	return nil
}

// resolveAll fetches the entity behind every id concurrently and returns them
// in the order of ids. References whose target no longer exists are dropped.
func resolveAll[T any](ctx context.Context, ids []string, get func(context.Context, string) (*T, error)) ([]T, error) {
	found := make([]*T, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveLimit)
	for i, id := range ids {
		g.Go(func() error {
			v, err := get(ctx, id)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					return nil
				}
				return err
			}
			found[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for _, v := range found {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
