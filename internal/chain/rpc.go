package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
)

// RPCConfig describes a btcd/bitcoind JSON-RPC endpoint.
type RPCConfig struct {
	Host string
	User string
	Pass string
}

// NewRPCClient opens an HTTP POST mode client, which works against both btcd
// and bitcoind.
func NewRPCClient(cfg RPCConfig) (*rpcclient.Client, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("rpc client: %w", err)
	}
	return client, nil
}

// RPCGetter returns a GetFunc backed by getrawtransaction.
func RPCGetter(client *rpcclient.Client) GetFunc {
	return func(ctx context.Context, txid string) (string, error) {
		hash, err := chainhash.NewHashFromStr(txid)
		if err != nil {
			return "", fmt.Errorf("parse txid: %w", err)
		}

		future := client.GetRawTransactionAsync(hash)

		type result struct {
			hex string
			err error
		}
		done := make(chan result, 1)
		go func() {
			tx, err := future.Receive()
			if err != nil {
				done <- result{err: fmt.Errorf("getrawtransaction %s: %w", txid, err)}
				return
			}
			var buf bytes.Buffer
			if err := tx.MsgTx().Serialize(&buf); err != nil {
				done <- result{err: fmt.Errorf("serialize %s: %w", txid, err)}
				return
			}
			done <- result{hex: hex.EncodeToString(buf.Bytes())}
		}()

		select {
		case r := <-done:
			return r.hex, r.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
