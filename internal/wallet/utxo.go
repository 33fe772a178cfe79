package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/OKaluzny/btc-hdwallet/pkg/models"
)

// ErrNoTxSource is returned by FetchUtxo when no transaction source is wired.
var ErrNoTxSource = errors.New("no transaction source configured")

// Utxos returns the stored unspent outputs.
func (w *HDWallet) Utxos() ([]models.UTXO, error) {
	return w.utxos.List()
}

// SetUtxo replaces the stored unspent outputs.
func (w *HDWallet) SetUtxo(utxos []models.UTXO) error {
	return w.utxos.Replace(utxos)
}

// FetchUtxo fills in TxHex for stored UTXOs that lack it. Transactions the
// source does not return are left without TxHex; spending such an output
// from a legacy wallet later fails with tx.ErrMissingPrevTx.
func (w *HDWallet) FetchUtxo(ctx context.Context) ([]models.UTXO, error) {
	utxos, err := w.utxos.List()
	if err != nil {
		return nil, fmt.Errorf("list utxos: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, u := range utxos {
		if u.TxHex == "" && !seen[u.Txid] {
			seen[u.Txid] = true
			ids = append(ids, u.Txid)
		}
	}
	if len(ids) == 0 {
		return utxos, nil
	}
	if w.source == nil {
		return nil, ErrNoTxSource
	}

	txs, err := w.source.MultiGetTransactionByTxid(ctx, ids, w.batchSize, false)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	missing := 0
	for i := range utxos {
		if utxos[i].TxHex != "" {
			continue
		}
		if raw, ok := txs[utxos[i].Txid]; ok {
			utxos[i].TxHex = raw
		} else {
			missing++
		}
	}
	if missing > 0 {
		w.logger.Warn("previous transactions unavailable",
			"requested", len(ids),
			"returned", len(txs),
			"utxos_without_txhex", missing,
		)
	}

	if err := w.utxos.Replace(utxos); err != nil {
		return nil, fmt.Errorf("store utxos: %w", err)
	}
	return utxos, nil
}
