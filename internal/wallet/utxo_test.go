package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/OKaluzny/btc-hdwallet/internal/keytree"
	"github.com/OKaluzny/btc-hdwallet/internal/tx"
	"github.com/OKaluzny/btc-hdwallet/pkg/models"
)

// mockSource implements chain.TxSource for testing.
type mockSource struct {
	txs       map[string]string
	lastIDs   []string
	lastBatch int
	err       error
}

func (m *mockSource) MultiGetTransactionByTxid(ctx context.Context, txids []string, batchSize int, verbose bool) (map[string]string, error) {
	m.lastIDs = txids
	m.lastBatch = batchSize
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string)
	for _, id := range txids {
		if raw, ok := m.txs[id]; ok {
			out[id] = raw
		}
	}
	return out, nil
}

// fundingTx returns a transaction paying value to addr at output 0, its txid
// and its raw hex.
func fundingTx(t *testing.T, w *HDWallet, addr string, value int64) (string, string) {
	t.Helper()
	decoded, err := btcutil.DecodeAddress(addr, w.Params())
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(decoded)
	require.NoError(t, err)

	msg := wire.NewMsgTx(2)
	msg.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{0xaa}, Index: uint32(value)},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	msg.AddTxOut(wire.NewTxOut(value, pkScript))

	var buf bytes.Buffer
	require.NoError(t, msg.Serialize(&buf))
	return msg.TxHash().String(), hex.EncodeToString(buf.Bytes())
}

func TestFetchUtxo_PartialResults(t *testing.T) {
	w, _ := newTestWallet(t, LegacyP2PKH, testMnemonic)
	addr, err := w.ExternalAddress(0)
	require.NoError(t, err)

	id1, raw1 := fundingTx(t, w, addr, 1000)
	id2, _ := fundingTx(t, w, addr, 2000)

	src := &mockSource{txs: map[string]string{id1: raw1}}
	w.source = src
	w.batchSize = 7

	require.NoError(t, w.SetUtxo([]models.UTXO{
		{Txid: id1, Vout: 0, Address: addr, Value: 1000},
		{Txid: id1, Vout: 0, Address: addr, Value: 1000},
		{Txid: id2, Vout: 0, Address: addr, Value: 2000},
	}))

	utxos, err := w.FetchUtxo(context.Background())
	require.NoError(t, err)
	require.Equal(t, raw1, utxos[0].TxHex)
	require.Equal(t, raw1, utxos[1].TxHex)
	require.Empty(t, utxos[2].TxHex)

	require.Equal(t, []string{id1, id2}, src.lastIDs, "txids are requested once each")
	require.Equal(t, 7, src.lastBatch)

	stored, err := w.Utxos()
	require.NoError(t, err)
	require.Equal(t, utxos, stored)

	// The output whose previous transaction never arrived cannot be spent
	// from a legacy wallet.
	packet, err := tx.NewPacket()
	require.NoError(t, err)
	_, err = w.BuildInput(packet, utxos[2], wire.MaxTxInSequenceNum)
	require.ErrorIs(t, err, tx.ErrMissingPrevTx)

	_, err = w.BuildInput(packet, utxos[0], wire.MaxTxInSequenceNum)
	require.NoError(t, err)
	require.Len(t, packet.Inputs, 1)
}

func TestFetchUtxo_NothingToFetch(t *testing.T) {
	w, _ := newTestWallet(t, LegacyP2PKH, testMnemonic)
	require.NoError(t, w.SetUtxo([]models.UTXO{{Txid: "aa", TxHex: "00"}}))

	utxos, err := w.FetchUtxo(context.Background())
	require.NoError(t, err)
	require.Len(t, utxos, 1)
}

func TestFetchUtxo_Errors(t *testing.T) {
	w, _ := newTestWallet(t, LegacyP2PKH, testMnemonic)
	require.NoError(t, w.SetUtxo([]models.UTXO{{Txid: "aa"}}))

	_, err := w.FetchUtxo(context.Background())
	require.ErrorIs(t, err, ErrNoTxSource)

	boom := errors.New("backend down")
	w.source = &mockSource{err: boom}
	_, err = w.FetchUtxo(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestBuildInput_EndToEnd(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind.Name, func(t *testing.T) {
			w, _ := newTestWallet(t, kind, testMnemonic)
			addr, err := w.InternalAddress(4)
			require.NoError(t, err)

			txid, raw := fundingTx(t, w, addr, 50_000)
			utxo := models.UTXO{Txid: txid, Vout: 0, Address: addr, TxHex: raw, Value: 50_000}

			packet, err := tx.NewPacket()
			require.NoError(t, err)
			_, err = w.BuildInput(packet, utxo, wire.MaxTxInSequenceNum-2)
			require.NoError(t, err)

			fp, err := w.MasterFingerprint()
			require.NoError(t, err)

			d := packet.Inputs[0].Bip32Derivation[0]
			require.Equal(t, fp, d.MasterKeyFingerprint)
			require.Equal(t, kind.Root(w.Params()).Child(
				keytree.Soft(1), keytree.Soft(4)).Uint32s(), d.Bip32Path)

			derived, err := w.LocateAddress(addr)
			require.NoError(t, err)
			require.Equal(t, derived.PublicKey, hex.EncodeToString(d.PubKey))
		})
	}
}

func TestBuildInput_WatchOnlyNeedsFingerprint(t *testing.T) {
	w, _ := newTestWallet(t, SegwitBech32, bip84Zpub)
	addr, err := w.ExternalAddress(0)
	require.NoError(t, err)
	txid, _ := fundingTx(t, w, addr, 10_000)
	utxo := models.UTXO{Txid: txid, Vout: 0, Address: addr, Value: 10_000}

	packet, err := tx.NewPacket()
	require.NoError(t, err)
	_, err = w.BuildInput(packet, utxo, wire.MaxTxInSequenceNum)
	require.ErrorIs(t, err, ErrWatchOnly)

	_, err = w.BuildInputWithFingerprint(packet, utxo, wire.MaxTxInSequenceNum, 0x0adac573)
	require.NoError(t, err)
	require.Equal(t, uint32(0x0adac573), packet.Inputs[0].Bip32Derivation[0].MasterKeyFingerprint)
	require.Equal(t, []uint32{0x80000054, 0x80000000, 0x80000000, 0, 0},
		packet.Inputs[0].Bip32Derivation[0].Bip32Path)
}
