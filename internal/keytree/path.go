package keytree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// ErrInvalidPath is returned when a derivation path string cannot be parsed.
var ErrInvalidPath = errors.New("invalid derivation path")

// Segment is one level of a BIP32 derivation path.
type Segment struct {
	Index    uint32
	Hardened bool
}

// Hard returns a hardened segment for index.
func Hard(index uint32) Segment {
	return Segment{Index: index, Hardened: true}
}

// Soft returns a non-hardened segment for index.
func Soft(index uint32) Segment {
	return Segment{Index: index}
}

// Uint32 returns the BIP32 child number, with hardened segments offset by 2^31.
func (s Segment) Uint32() uint32 {
	if s.Hardened {
		return hdkeychain.HardenedKeyStart + s.Index
	}
	return s.Index
}

func (s Segment) String() string {
	if s.Hardened {
		return strconv.FormatUint(uint64(s.Index), 10) + "'"
	}
	return strconv.FormatUint(uint64(s.Index), 10)
}

// Path is an ordered list of segments rooted at the master node "m".
type Path []Segment

// ParsePath parses paths of the form m/84'/0'/0'/0/5. Both ' and h/H mark a
// hardened segment.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if parts[0] != "m" && parts[0] != "M" {
		return nil, fmt.Errorf("%w: %q must start with m", ErrInvalidPath, s)
	}

	path := make(Path, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := false
		if n := len(part); n > 0 {
			switch part[n-1] {
			case '\'', 'h', 'H':
				hardened = true
				part = part[:n-1]
			}
		}

		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %q in %q", ErrInvalidPath, part, s)
		}
		if idx >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: segment %d out of range", ErrInvalidPath, idx)
		}
		path = append(path, Segment{Index: uint32(idx), Hardened: hardened})
	}
	return path, nil
}

// MustParsePath is ParsePath for package-level constants.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Child returns a new path with segs appended. The receiver is not modified.
func (p Path) Child(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Uint32s returns the BIP32 child numbers as stored in PSBT derivation fields.
func (p Path) Uint32s() []uint32 {
	out := make([]uint32, len(p))
	for i, s := range p {
		out[i] = s.Uint32()
	}
	return out
}

func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, s := range p {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}
