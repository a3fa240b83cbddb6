// Package optimistic implements version-stamped updates against a shared
// store: apply a change, send it with the version it was based on, and on a
// version conflict refetch, re-apply and retry a bounded number of times.
package optimistic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"time"
)

const DefaultMaxRetries = 3

var ErrNotFound = errors.New("optimistic: entity not found")

// Entity wraps a payload with the version metadata the store hands out.
type Entity[T any] struct {
	ID        string    `json:"id"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
	ETag      string    `json:"etag,omitempty"`
	Data      T         `json:"data"`
}

// Transport moves entities to and from the store. Put must fail with a
// *VersionConflictError[T] when the stored version differs from e.Version.
type Transport[T any] interface {
	Fetch(ctx context.Context, key string) (Entity[T], error)
	Put(ctx context.Context, key string, e Entity[T]) (Entity[T], error)
}

// VersionConflictError carries the store's current entity when it sent one.
type VersionConflictError[T any] struct {
	Key    string
	Remote *Entity[T]
}

func (e *VersionConflictError[T]) Error() string {
	if e.Remote != nil {
		return fmt.Sprintf("version conflict on %s (remote version %d)", e.Key, e.Remote.Version)
	}
	return fmt.Sprintf("version conflict on %s", e.Key)
}

// ConcurrencyError is returned once retries are exhausted. Remote holds the
// last conflicting payload seen, so callers can reload and reapply.
type ConcurrencyError struct {
	Key           string
	Retries       int
	RemoteVersion int
	Remote        any
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrent modification of %s: gave up after %d retries (remote version %d)",
		e.Key, e.Retries, e.RemoteVersion)
}

func IsConcurrency(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}

type Controller[T any] struct {
	transport  Transport[T]
	MaxRetries int
	Logger     *log.Logger
}

func NewController[T any](transport Transport[T], maxRetries int, logger *log.Logger) *Controller[T] {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller[T]{transport: transport, MaxRetries: maxRetries, Logger: logger}
}

// Update applies fn to current and stores the result. On a version conflict
// the latest entity is fetched and fn applied again, up to MaxRetries times.
// Errors from fn abort immediately.
func (c *Controller[T]) Update(ctx context.Context, key string, current Entity[T], fn func(T) (T, error)) (Entity[T], error) {
	entity := current
	for retry := 0; ; retry++ {
		next, err := fn(entity.Data)
		if err != nil {
			return Entity[T]{}, err
		}
		candidate := entity
		candidate.Data = next

		saved, err := c.transport.Put(ctx, key, candidate)
		if err == nil {
			return saved, nil
		}
		var vc *VersionConflictError[T]
		if !errors.As(err, &vc) {
			return Entity[T]{}, err
		}

		remote := entity
		if vc.Remote != nil {
			remote = *vc.Remote
		}
		if retry >= c.MaxRetries {
			c.Logger.Printf("[optimistic] %s: giving up after %d retries", key, retry)
			return Entity[T]{}, &ConcurrencyError{Key: key, Retries: retry, RemoteVersion: remote.Version, Remote: remote.Data}
		}
		c.Logger.Printf("[optimistic] %s: version %d is stale, refetching (retry %d/%d)", key, candidate.Version, retry+1, c.MaxRetries)

		if err := ctx.Err(); err != nil {
			return Entity[T]{}, err
		}
		entity, err = c.transport.Fetch(ctx, key)
		if err != nil {
			return Entity[T]{}, fmt.Errorf("refetch %s: %w", key, err)
		}
	}
}

// Item is one entity of a batch, addressed by its store key.
type Item[T any] struct {
	Key    string
	Entity Entity[T]
}

type BatchConflict[T any] struct {
	Item   Item[T]
	Remote *Entity[T]
}

type BatchResult[T any] struct {
	Successful []Entity[T]
	Conflicts  []BatchConflict[T]
}

// ConflictHandler turns conflicting items into items worth retrying, usually
// by merging with the remote copy. Returning no items stops the retry.
type ConflictHandler[T any] func(ctx context.Context, conflicts []BatchConflict[T]) ([]Item[T], error)

// BatchUpdate sends each item once and splits the outcome into successes and
// version conflicts. When onConflict is given, the items it returns are
// retried with fn re-applied, at most MaxRetries rounds deep.
func (c *Controller[T]) BatchUpdate(ctx context.Context, items []Item[T], fn func(T) (T, error), onConflict ConflictHandler[T]) (BatchResult[T], error) {
	return c.batch(ctx, items, fn, onConflict, 0)
}

func (c *Controller[T]) batch(ctx context.Context, items []Item[T], fn func(T) (T, error), onConflict ConflictHandler[T], depth int) (BatchResult[T], error) {
	var res BatchResult[T]
	for _, it := range items {
		next, err := fn(it.Entity.Data)
		if err != nil {
			return res, fmt.Errorf("update %s: %w", it.Key, err)
		}
		candidate := it.Entity
		candidate.Data = next
		saved, err := c.transport.Put(ctx, it.Key, candidate)
		if err == nil {
			res.Successful = append(res.Successful, saved)
			continue
		}
		var vc *VersionConflictError[T]
		if !errors.As(err, &vc) {
			return res, fmt.Errorf("update %s: %w", it.Key, err)
		}
		res.Conflicts = append(res.Conflicts, BatchConflict[T]{Item: it, Remote: vc.Remote})
	}

	if len(res.Conflicts) == 0 || onConflict == nil || depth >= c.MaxRetries {
		return res, nil
	}
	c.Logger.Printf("[optimistic] batch: %d conflict(s), handing to resolver (round %d)", len(res.Conflicts), depth+1)
	retry, err := onConflict(ctx, res.Conflicts)
	if err != nil {
		return res, err
	}
	if len(retry) == 0 {
		return res, nil
	}
	sub, err := c.batch(ctx, retry, fn, onConflict, depth+1)
	res.Successful = append(res.Successful, sub.Successful...)
	res.Conflicts = sub.Conflicts
	return res, err
}

// MergeChanges combines a local edit with the remote copy. Fields named in
// conflictFields always take the remote value; every other field keeps the
// local value where it differs from remote.
func MergeChanges(local, remote map[string]any, conflictFields []string) map[string]any {
	authoritative := make(map[string]struct{}, len(conflictFields))
	for _, f := range conflictFields {
		authoritative[f] = struct{}{}
	}
	out := make(map[string]any, len(remote))
	for k, v := range remote {
		out[k] = v
	}
	for k, lv := range local {
		if _, ok := authoritative[k]; ok {
			continue
		}
		if rv, ok := remote[k]; ok && reflect.DeepEqual(lv, rv) {
			continue
		}
		out[k] = lv
	}
	return out
}

// Merge applies MergeChanges to two structs through their JSON field names.
func Merge[T any](local, remote T, conflictFields []string) (T, error) {
	var zero T
	lm, err := toMap(local)
	if err != nil {
		return zero, err
	}
	rm, err := toMap(remote)
	if err != nil {
		return zero, err
	}
	raw, err := json.Marshal(MergeChanges(lm, rm, conflictFields))
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, err
	}
	return out, nil
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := make(map[string]any)
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
