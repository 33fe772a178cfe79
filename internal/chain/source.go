package chain

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TxSource fetches raw transactions by id. Ids that cannot be fetched are
// omitted from the result instead of failing the whole call, so callers must
// handle partial results.
type TxSource interface {
	MultiGetTransactionByTxid(ctx context.Context, txids []string, batchSize int, verbose bool) (map[string]string, error)
}

// GetFunc fetches a single raw transaction as hex.
type GetFunc func(ctx context.Context, txid string) (string, error)

// BatchSource implements TxSource on top of a single-transaction getter.
// Batches are processed one after another; ids inside a batch are fetched
// concurrently, at most concurrency at a time.
type BatchSource struct {
	get         GetFunc
	concurrency int
	logger      *slog.Logger
}

// NewBatchSource wraps get as a TxSource. A concurrency of zero or less
// leaves the number of in-flight fetches bounded only by the batch size.
func NewBatchSource(get GetFunc, concurrency int) *BatchSource {
	return &BatchSource{
		get:         get,
		concurrency: concurrency,
		logger:      slog.Default().With("component", "tx_source"),
	}
}

// MultiGetTransactionByTxid fetches txids in chunks of batchSize. The verbose
// flag is accepted for interface compatibility; raw hex is always returned.
// Only context cancellation is reported as an error.
func (s *BatchSource) MultiGetTransactionByTxid(ctx context.Context, txids []string, batchSize int, verbose bool) (map[string]string, error) {
	if batchSize <= 0 {
		batchSize = len(txids)
	}

	var (
		mu     sync.Mutex
		result = make(map[string]string, len(txids))
	)

	for start := 0; start < len(txids); start += batchSize {
		end := min(start+batchSize, len(txids))

		g, gctx := errgroup.WithContext(ctx)
		if s.concurrency > 0 {
			g.SetLimit(s.concurrency)
		}
		for _, txid := range txids[start:end] {
			txid := txid
			g.Go(func() error {
				hex, err := s.get(gctx, txid)
				if err != nil {
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					s.logger.Warn("fetch transaction failed", "txid", txid, "error", err)
					return nil
				}
				mu.Lock()
				result[txid] = hex
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		s.logger.Debug("fetched transaction batch",
			"from", start,
			"to", end,
			"total", len(txids),
		)
	}

	return result, nil
}
