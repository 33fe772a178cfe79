// Command hdwallet prints the account xpub and the first receive and change
// addresses for the wallet configured through the environment, optionally
// attaching previous transactions to a UTXO list read from stdin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/OKaluzny/btc-hdwallet/internal/chain"
	"github.com/OKaluzny/btc-hdwallet/internal/config"
	"github.com/OKaluzny/btc-hdwallet/internal/tx"
	"github.com/OKaluzny/btc-hdwallet/internal/wallet"
	"github.com/OKaluzny/btc-hdwallet/pkg/models"
)

// options are the command line flags.
type options struct {
	EnvFile string `long:"env" default:".env" description:"dotenv file to load"`
	Count   int    `short:"n" long:"count" default:"5" description:"addresses to print per chain"`
	Fetch   bool   `long:"fetch" description:"read UTXOs as JSON from stdin and attach previous transactions"`
	PSBT    bool   `long:"psbt" description:"with --fetch, print a base64 PSBT spending the UTXOs"`
}

func parseOptions(args []string) (*options, error) {
	var opts options
	if _, err := flags.ParseArgs(&opts, args); err != nil {
		return nil, err
	}
	if opts.Count < 0 {
		return nil, fmt.Errorf("count must not be negative: %d", opts.Count)
	}
	if opts.PSBT && !opts.Fetch {
		return nil, errors.New("--psbt requires --fetch")
	}
	return &opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(opts.EnvFile, opts.Count, opts.Fetch, opts.PSBT); err != nil {
		slog.Error("hdwallet failed", "error", err)
		os.Exit(1)
	}
}

func run(envFile string, count int, fetch, build bool) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	kind, err := wallet.KindByName(cfg.WalletKind)
	if err != nil {
		return err
	}

	wcfg := wallet.Config{
		Params:    params,
		BatchSize: cfg.TxFetchBatchSize,
	}
	if fetch {
		client, err := chain.NewRPCClient(chain.RPCConfig{
			Host: cfg.RPCHost,
			User: cfg.RPCUser,
			Pass: cfg.RPCPass,
		})
		if err != nil {
			return err
		}
		defer client.Shutdown()
		wcfg.Source = chain.NewBatchSource(chain.RPCGetter(client), cfg.TxFetchConcurrency)
	}

	w, err := wallet.New(kind, cfg.WalletSecret, wcfg)
	if err != nil {
		return err
	}

	xpub, err := w.Xpub()
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", kind.Readable, xpub)

	for _, c := range []models.Chain{models.ChainExternal, models.ChainInternal} {
		for i := 0; i < count; i++ {
			d, err := w.DeriveAddress(c, uint32(i))
			if err != nil {
				return err
			}
			fmt.Printf("%-8s %-18s %s\n", c, d.DerivationPath, d.Address)
		}
	}

	if !fetch {
		return nil
	}

	var utxos []models.UTXO
	if err := json.NewDecoder(os.Stdin).Decode(&utxos); err != nil {
		return fmt.Errorf("decode utxos: %w", err)
	}
	if err := w.SetUtxo(utxos); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TxFetchTimeout)
	defer cancel()

	utxos, err = w.FetchUtxo(ctx)
	if err != nil {
		return err
	}
	if !build {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(utxos)
	}

	// Only addresses printed above are known to the wallet, so UTXOs must
	// pay to one of the first count indexes of either chain.
	packet, err := tx.NewPacket()
	if err != nil {
		return err
	}
	for _, u := range utxos {
		if _, err := w.BuildInput(packet, u, cfg.DefaultSequence); err != nil {
			if errors.Is(err, tx.ErrMissingPrevTx) {
				return fmt.Errorf("%w: re-run once the backend can serve %s", err, u.Txid)
			}
			return err
		}
	}
	encoded, err := packet.B64Encode()
	if err != nil {
		return err
	}
	fmt.Println(encoded)
	return nil
}
