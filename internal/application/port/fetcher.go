package port

import (
	"context"

	"dexsync/internal/domain/model"
)

// Fetcher pulls ledger data from the remote indexer. Sub-fetches run
// concurrently; a failed category yields an empty result and an entry
// in the batch's SourceErrors, never an error return.
type Fetcher interface {
	FetchAll(ctx context.Context, accountID, baseURL string) *model.Batch
}
