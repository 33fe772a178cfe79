package wallet

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ScriptToAddress decodes a hex output script into a bech32m taproot
// address. Anything that is not a valid P2TR script yields None; probing
// unknown scripts is expected to fail often.
func ScriptToAddress(scriptHex string, params *chaincfg.Params) fn.Option[string] {
	script, err := hex.DecodeString(scriptHex)
	if err != nil || !txscript.IsPayToTaproot(script) {
		return fn.None[string]()
	}

	// OP_1 OP_DATA_32 <32-byte output key>
	outputKey := script[2:]
	if _, err := schnorr.ParsePubKey(outputKey); err != nil {
		return fn.None[string]()
	}
	addr, err := btcutil.NewAddressTaproot(outputKey, params)
	if err != nil {
		return fn.None[string]()
	}
	return fn.Some(addr.EncodeAddress())
}
