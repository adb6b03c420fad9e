// Package usedkey stores consumed mint binding keys. The set is
// append-only for correctness; ArchiveBefore exists only as a capacity
// valve for period-scoped keys whose bucket can never recur.
package usedkey

import "context"

// FirstTimeBucket marks keys with no period scope. They are never
// archived: a first-time binding must hold for the life of the system.
const FirstTimeBucket int64 = -1

// Store is the used-key persistence boundary. Implementations must make
// Add atomic: two concurrent Adds of one key must yield exactly one true.
type Store interface {
	// Add inserts the key. Returns false when the key was already
	// consumed.
	Add(ctx context.Context, key string, periodBucket int64) (bool, error)

	// Contains reports whether the key was consumed.
	Contains(ctx context.Context, key string) (bool, error)

	// ArchiveBefore drops period-scoped keys with a bucket strictly below
	// the cutoff. First-time keys are retained regardless. Returns the
	// number of keys dropped.
	ArchiveBefore(ctx context.Context, cutoffBucket int64) (int, error)
}
