package keytree

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip32"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testMaster(t *testing.T) *Node {
	t.Helper()
	seed, err := MnemonicToSeed(testMnemonic)
	require.NoError(t, err)
	master, err := NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return master
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in      string
		want    Path
		render  string
		wantErr bool
	}{
		{in: "m", want: Path{}, render: "m"},
		{in: "m/44'/0'/0'", want: Path{Hard(44), Hard(0), Hard(0)}, render: "m/44'/0'/0'"},
		{in: "m/84h/0H/0'/1/7", want: Path{Hard(84), Hard(0), Hard(0), Soft(1), Soft(7)}, render: "m/84'/0'/0'/1/7"},
		{in: "m/0'", want: Path{Hard(0)}, render: "m/0'"},
		{in: "44'/0'", wantErr: true},
		{in: "m/", wantErr: true},
		{in: "m/-1", wantErr: true},
		{in: "m/x'", wantErr: true},
		{in: "m/2147483648", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePath(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.render, got.String())
		})
	}
}

func TestPathUint32sAndChild(t *testing.T) {
	root := MustParsePath("m/44'/0'/0'")
	full := root.Child(Soft(1), Soft(5))

	require.Len(t, root, 3, "Child must not modify the receiver")
	require.Equal(t, []uint32{0x8000002c, 0x80000000, 0x80000000, 1, 5}, full.Uint32s())
	require.Equal(t, "m/44'/0'/0'/1/5", full.String())
}

func TestMnemonicToSeed(t *testing.T) {
	seed, err := MnemonicToSeed(testMnemonic)
	require.NoError(t, err)
	require.Len(t, seed, 64)

	spaced, err := MnemonicToSeed("  abandon abandon abandon abandon abandon abandon\tabandon abandon abandon abandon abandon about ")
	require.NoError(t, err)
	require.Equal(t, seed, spaced)

	_, err = MnemonicToSeed("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon")
	require.ErrorIs(t, err, ErrInvalidMnemonic)

	require.True(t, IsMnemonic(testMnemonic))
	require.False(t, IsMnemonic("xpub6BosfCnifzxcFwrSzQiqu2DBVTshkCXacvNsWGYJVVhhawA7d4R5WSWGFNbi8Aw6ZRc1brxMyWMzG3DSSSSoekkudhUd9yLb6qx39T9nMdj"))
}

// TestMatchesBip32Reference checks derivation against an independent BIP32
// implementation.
func TestMatchesBip32Reference(t *testing.T) {
	master := testMaster(t)
	seed, err := MnemonicToSeed(testMnemonic)
	require.NoError(t, err)

	ref, err := bip32.NewMasterKey(seed)
	require.NoError(t, err)

	for _, root := range []string{"m/44'/0'/0'", "m/84'/0'/0'", "m/0'"} {
		t.Run(root, func(t *testing.T) {
			path := MustParsePath(root)

			refAccount := ref
			for _, idx := range path.Uint32s() {
				refAccount, err = refAccount.NewChildKey(idx)
				require.NoError(t, err)
			}

			account, err := master.DerivePath(path)
			require.NoError(t, err)
			pub, err := account.Neuter()
			require.NoError(t, err)

			require.Equal(t, refAccount.PublicKey().B58Serialize(), pub.String())
			require.Equal(t, refAccount.B58Serialize(), account.String())

			for _, chain := range []uint32{0, 1} {
				for _, idx := range []uint32{0, 1, 2} {
					refChild, err := refAccount.NewChildKey(chain)
					require.NoError(t, err)
					refChild, err = refChild.NewChildKey(idx)
					require.NoError(t, err)

					child, err := pub.DerivePath(Path{Soft(chain), Soft(idx)})
					require.NoError(t, err)
					key, err := child.PubKey()
					require.NoError(t, err)
					require.Equal(t, refChild.PublicKey().Key, key.SerializeCompressed())
				}
			}
		})
	}
}

func TestNeuterAndPublicDerivation(t *testing.T) {
	master := testMaster(t)
	account, err := master.DerivePath(MustParsePath("m/44'/0'/0'"))
	require.NoError(t, err)
	require.True(t, account.IsPrivate())

	pub, err := account.Neuter()
	require.NoError(t, err)
	require.False(t, pub.IsPrivate())
	require.Regexp(t, "^xpub", pub.String())

	_, err = pub.Child(Hard(0))
	require.ErrorIs(t, err, ErrHardenedFromPublic)

	_, err = pub.WIF()
	require.ErrorIs(t, err, ErrNotPrivate)

	// Public and private derivation agree on non-hardened children.
	privChild, err := account.DerivePath(Path{Soft(0), Soft(3)})
	require.NoError(t, err)
	pubChild, err := pub.DerivePath(Path{Soft(0), Soft(3)})
	require.NoError(t, err)

	a, err := privChild.PubKey()
	require.NoError(t, err)
	b, err := pubChild.PubKey()
	require.NoError(t, err)
	require.True(t, a.IsEqual(b))

	reparsed, err := FromString(pub.String(), &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, pub.String(), reparsed.String())
}

func TestWIF(t *testing.T) {
	master := testMaster(t)
	node, err := master.DerivePath(MustParsePath("m/44'/0'/0'/0/0"))
	require.NoError(t, err)

	encoded, err := node.WIF()
	require.NoError(t, err)

	wif, err := btcutil.DecodeWIF(encoded)
	require.NoError(t, err)
	require.True(t, wif.CompressPubKey)
	require.True(t, wif.IsForNet(&chaincfg.MainNetParams))

	pub, err := node.PubKey()
	require.NoError(t, err)
	require.True(t, pub.IsEqual(wif.PrivKey.PubKey()))
}

func TestStringWithVersion(t *testing.T) {
	master := testMaster(t)
	account, err := master.DerivePath(MustParsePath("m/84'/0'/0'"))
	require.NoError(t, err)
	pub, err := account.Neuter()
	require.NoError(t, err)

	zpub, err := pub.StringWithVersion([4]byte{0x04, 0xb2, 0x47, 0x46})
	require.NoError(t, err)
	require.Regexp(t, "^zpub", zpub)

	// The imported zpub derives the same children as the xpub it came from.
	imported, err := FromString(zpub, &chaincfg.MainNetParams)
	require.NoError(t, err)
	a, err := imported.DerivePath(Path{Soft(0), Soft(0)})
	require.NoError(t, err)
	b, err := pub.DerivePath(Path{Soft(0), Soft(0)})
	require.NoError(t, err)
	ka, err := a.PubKey()
	require.NoError(t, err)
	kb, err := b.PubKey()
	require.NoError(t, err)
	require.True(t, ka.IsEqual(kb))
}

func TestFingerprint(t *testing.T) {
	master := testMaster(t)
	fp, err := master.Fingerprint()
	require.NoError(t, err)

	// The account node records its parent's fingerprint in big-endian form.
	child, err := master.Child(Hard(84))
	require.NoError(t, err)
	pub, err := master.PubKey()
	require.NoError(t, err)
	hash := btcutil.Hash160(pub.SerializeCompressed())
	require.Equal(t, uint32(hash[0])|uint32(hash[1])<<8|uint32(hash[2])<<16|uint32(hash[3])<<24, fp)
	require.Equal(t, child.key.ParentFingerprint(),
		uint32(hash[0])<<24|uint32(hash[1])<<16|uint32(hash[2])<<8|uint32(hash[3]))
}
