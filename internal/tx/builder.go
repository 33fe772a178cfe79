package tx

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/OKaluzny/btc-hdwallet/internal/keytree"
	"github.com/OKaluzny/btc-hdwallet/pkg/models"
)

var (
	// ErrMissingPrevTx is returned when a non-segwit input is built without
	// the raw previous transaction. Re-fetching the transaction and retrying
	// resolves it.
	ErrMissingPrevTx = errors.New("missing previous transaction")

	// ErrPrevTxMismatch is returned when the supplied previous transaction
	// does not match the outpoint being spent.
	ErrPrevTxMismatch = errors.New("previous transaction does not match utxo")
)

// KeyLocator maps an address owned by the wallet back to its derivation.
type KeyLocator interface {
	LocateAddress(address string) (*models.DerivedAddress, error)
}

// Builder decorates PSBT inputs with the data an external signer needs.
type Builder struct {
	locator KeyLocator
	params  *chaincfg.Params
	logger  *slog.Logger
}

// NewBuilder creates an input builder resolving keys through locator.
func NewBuilder(locator KeyLocator, params *chaincfg.Params) *Builder {
	return &Builder{
		locator: locator,
		params:  params,
		logger:  slog.Default().With("component", "psbt_builder"),
	}
}

// NewPacket returns an empty version 2 packet to accumulate inputs into.
func NewPacket() (*psbt.Packet, error) {
	return psbt.New(nil, nil, 2, 0, nil)
}

// BuildInput appends the input spending utxo to packet and returns packet.
// Legacy inputs require utxo.TxHex; segwit v0 inputs include it when present;
// taproot inputs only carry the spent output.
func (b *Builder) BuildInput(packet *psbt.Packet, utxo models.UTXO, sequence uint32, masterFingerprint uint32) (*psbt.Packet, error) {
	derived, err := b.locator.LocateAddress(utxo.Address)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", utxo.Address, err)
	}

	hash, err := chainhash.NewHashFromStr(utxo.Txid)
	if err != nil {
		return nil, fmt.Errorf("parse txid %q: %w", utxo.Txid, err)
	}

	path, err := keytree.ParsePath(derived.DerivationPath)
	if err != nil {
		return nil, err
	}
	pubKey, err := hex.DecodeString(derived.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	derivation := &psbt.Bip32Derivation{
		PubKey:               pubKey,
		MasterKeyFingerprint: masterFingerprint,
		Bip32Path:            path.Uint32s(),
	}

	var in *psbt.PInput
	switch derived.Type {
	case models.AddressP2PKH:
		in, err = b.legacyInput(utxo, hash, derivation)
	case models.AddressP2WPKH:
		in, err = b.segwitV0Input(utxo, hash, derivation)
	case models.AddressP2TR:
		in, err = b.taprootInput(utxo, derivation)
	default:
		err = fmt.Errorf("unsupported address type %q", derived.Type)
	}
	if err != nil {
		return nil, err
	}

	packet.UnsignedTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: *hash, Index: utxo.Vout},
		Sequence:         sequence,
	})
	packet.Inputs = append(packet.Inputs, *in)

	b.logger.Info("added psbt input",
		"txid", utxo.Txid,
		"vout", utxo.Vout,
		"type", derived.Type,
		"path", derived.DerivationPath,
	)
	return packet, nil
}

func (b *Builder) legacyInput(utxo models.UTXO, hash *chainhash.Hash, derivation *psbt.Bip32Derivation) (*psbt.PInput, error) {
	// A non-segwit signature does not commit to the amount, so the signer
	// needs the whole previous transaction to verify what it spends.
	if utxo.TxHex == "" {
		return nil, fmt.Errorf("%w: %s:%d", ErrMissingPrevTx, utxo.Txid, utxo.Vout)
	}
	prevTx, err := decodePrevTx(utxo, hash)
	if err != nil {
		return nil, err
	}
	return &psbt.PInput{
		NonWitnessUtxo:  prevTx,
		SighashType:     txscript.SigHashAll,
		Bip32Derivation: []*psbt.Bip32Derivation{derivation},
	}, nil
}

func (b *Builder) segwitV0Input(utxo models.UTXO, hash *chainhash.Hash, derivation *psbt.Bip32Derivation) (*psbt.PInput, error) {
	out, err := b.witnessUtxo(utxo)
	if err != nil {
		return nil, err
	}
	in := &psbt.PInput{
		WitnessUtxo:     out,
		SighashType:     txscript.SigHashAll,
		Bip32Derivation: []*psbt.Bip32Derivation{derivation},
	}

	// Hardware signers reject v0 inputs without the full previous
	// transaction since CVE-2020-14199, so pass it along when we have it.
	if utxo.TxHex != "" {
		prevTx, err := decodePrevTx(utxo, hash)
		if err != nil {
			return nil, err
		}
		in.NonWitnessUtxo = prevTx
	}
	return in, nil
}

func (b *Builder) taprootInput(utxo models.UTXO, derivation *psbt.Bip32Derivation) (*psbt.PInput, error) {
	out, err := b.witnessUtxo(utxo)
	if err != nil {
		return nil, err
	}
	xOnly := derivation.PubKey[1:]
	return &psbt.PInput{
		WitnessUtxo:     out,
		SighashType:     txscript.SigHashDefault,
		Bip32Derivation: []*psbt.Bip32Derivation{derivation},
		TaprootBip32Derivation: []*psbt.TaprootBip32Derivation{{
			XOnlyPubKey:          xOnly,
			MasterKeyFingerprint: derivation.MasterKeyFingerprint,
			Bip32Path:            derivation.Bip32Path,
		}},
		TaprootInternalKey: xOnly,
	}, nil
}

func (b *Builder) witnessUtxo(utxo models.UTXO) (*wire.TxOut, error) {
	addr, err := btcutil.DecodeAddress(utxo.Address, b.params)
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("pkscript: %w", err)
	}
	return wire.NewTxOut(utxo.Value, pkScript), nil
}

func decodePrevTx(utxo models.UTXO, hash *chainhash.Hash) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(utxo.TxHex)
	if err != nil {
		return nil, fmt.Errorf("decode previous transaction hex: %w", err)
	}
	prevTx := wire.NewMsgTx(wire.TxVersion)
	if err := prevTx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("deserialize previous transaction: %w", err)
	}

	if got := prevTx.TxHash(); !got.IsEqual(hash) {
		return nil, fmt.Errorf("%w: hash %s, want %s", ErrPrevTxMismatch, got, hash)
	}
	if int(utxo.Vout) >= len(prevTx.TxOut) {
		return nil, fmt.Errorf("%w: vout %d out of range (%d outputs)",
			ErrPrevTxMismatch, utxo.Vout, len(prevTx.TxOut))
	}
	return prevTx, nil
}
