package ports

import "context"

// KeyValueStore is the client-local persistence capability used for payment
// session replay. Implementations must treat missing keys as (value "",
// found false) rather than an error so corrupt or absent entries can be
// discarded defensively by callers.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
