package cache

import (
	"errors"

	"tourbook/listing/pkg/model"
)

// ErrNotFound is returned on a cache miss.
var ErrNotFound = errors.New("not found in cache")

// AggregateKey returns the key an aggregate of ref is cached under.
func AggregateKey(ref model.SubjectRef) string {
	return "listing:aggregate:" + string(ref.Kind) + ":" + string(ref.ID)
}

// VersionKey returns the key holding the invalidation counter of ref.
// A fill only lands while the counter still has the value read before
// the store was queried.
func VersionKey(ref model.SubjectRef) string {
	return "listing:aggregate-version:" + string(ref.Kind) + ":" + string(ref.ID)
}
