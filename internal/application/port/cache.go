package port

import "context"

// Cache is the read cache in front of the store, keyed by
// (account, query). Entries expire on the backend's configured TTL;
// concurrent readers may race to repopulate an expired entry, which is
// fine because loaders are idempotent reads.
type Cache interface {
	Get(ctx context.Context, account, query string) ([]byte, bool)
	Set(ctx context.Context, account, query string, val []byte) error

	// InvalidateAccount drops every entry for one account. Called after
	// any successful or partial sync for that account.
	InvalidateAccount(ctx context.Context, account string) error
}
