package port

import "context"

type CacheRepository interface {
	// SetIdempotency claims a request ID, returns false if already claimed
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency releases a claimed request ID so a rejected posting
	// can be retried by the client
	ClearIdempotency(ctx context.Context, key string) error
}
