package keytree

import (
	"errors"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidMnemonic is returned for phrases that fail BIP39 validation.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// MnemonicToSeed converts a BIP39 phrase into its 64-byte seed using an empty
// passphrase. Extra whitespace between words is ignored.
func MnemonicToSeed(phrase string) ([]byte, error) {
	phrase = strings.Join(strings.Fields(phrase), " ")
	seed, err := bip39.NewSeedWithErrorChecking(phrase, "")
	if err != nil {
		return nil, errors.Join(ErrInvalidMnemonic, err)
	}
	return seed, nil
}

// IsMnemonic reports whether phrase is a valid BIP39 mnemonic.
func IsMnemonic(phrase string) bool {
	return bip39.IsMnemonicValid(strings.Join(strings.Fields(phrase), " "))
}
