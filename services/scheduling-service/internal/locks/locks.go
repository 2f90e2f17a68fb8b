package locks

import (
	"context"
	"errors"
	"slices"
)

// ErrNotAcquired means the lock stayed busy until the wait ran out.
var ErrNotAcquired = errors.New("lock not acquired")

type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// TechnicianKey is the lock guarding a technician's calendar.
func TechnicianKey(technicianID string) string {
	return "tech:" + technicianID
}

// AcquireAll takes every key in sorted order, so two callers locking the
// same pair cannot deadlock. On failure nothing stays held.
func AcquireAll(ctx context.Context, l Locker, keys ...string) (Release, error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]Release, 0, len(sorted))
	releaseAll := func(ctx context.Context) error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	for _, k := range sorted {
		if k == "" {
			continue
		}
		rel, err := l.Acquire(ctx, k)
		if err != nil {
			_ = releaseAll(context.WithoutCancel(ctx))
			return nil, err
		}
		held = append(held, rel)
	}
	return releaseAll, nil
}
