package jetstream

import "context"

// KeyValue is a documented seam for a key-value facade over stream/consumer
// operations. Key-value and object-store facades are thin adapters that are
// out of scope for this repository; this type records the contract such an
// adapter would need without implementing it.
type KeyValue interface {
	// Get returns the current value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key, creating a new revision.
	Put(ctx context.Context, key string, value []byte) (revision uint64, err error)
	// Delete removes key. Implementations typically publish a tombstone
	// message rather than purging the stream entry.
	Delete(ctx context.Context, key string) error
	// Watch streams updates to keys matching pattern until ctx is done.
	Watch(ctx context.Context, pattern string) (<-chan KeyValueUpdate, error)
}

// KeyValueUpdate is one observed change delivered by KeyValue.Watch.
type KeyValueUpdate struct {
	Key      string
	Value    []byte
	Revision uint64
	Deleted  bool
}
