package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// ErrInvalidIndex is returned when an address index cannot be coerced to a
// non-hardened child number.
var ErrInvalidIndex = errors.New("invalid address index")

// CoerceIndex converts numeric-like values to a child index so that 5, "5",
// 5.0 and json.Number("5") all address the same cache slot. Negative,
// fractional and hardened-range values are rejected.
func CoerceIndex(v any) (uint32, error) {
	var n uint64
	switch x := v.(type) {
	case uint32:
		n = uint64(x)
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidIndex, x)
		}
		n = uint64(x)
	case int8:
		return CoerceIndex(int64(x))
	case int16:
		return CoerceIndex(int64(x))
	case int32:
		return CoerceIndex(int64(x))
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidIndex, x)
		}
		n = uint64(x)
	case uint:
		n = uint64(x)
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint64:
		n = x
	case float32:
		return coerceFloat(float64(x))
	case float64:
		return coerceFloat(x)
	case json.Number:
		return coerceString(string(x))
	case string:
		return coerceString(x)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidIndex, v)
	}

	if n >= hdkeychain.HardenedKeyStart {
		return 0, fmt.Errorf("%w: %d is in the hardened range", ErrInvalidIndex, n)
	}
	return uint32(n), nil
}

func coerceString(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return CoerceIndex(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidIndex, s)
	}
	return coerceFloat(f)
}

func coerceFloat(f float64) (uint32, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) || f >= hdkeychain.HardenedKeyStart {
		return 0, fmt.Errorf("%w: %v", ErrInvalidIndex, f)
	}
	return uint32(f), nil
}
