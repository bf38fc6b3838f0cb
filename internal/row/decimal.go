package row

import (
	"fmt"
	"math/big"
)

// decimalFromAny coerces a Go value into a *big.Rat for storage in a
// Decimal field's dynamic-section slot.
func decimalFromAny(v any) (*big.Rat, bool) {
	switch t := v.(type) {
	case *big.Rat:
		return t, true
	case big.Rat:
		return &t, true
	case string:
		r := new(big.Rat)
		if _, ok := r.SetString(t); ok {
			return r, true
		}
		return nil, false
	case int:
		return new(big.Rat).SetInt64(int64(t)), true
	case int64:
		return new(big.Rat).SetInt64(t), true
	case float64:
		return new(big.Rat).SetFloat64(t), true
	default:
		return nil, false
	}
}

func decimalToString(r *big.Rat) string {
	if r == nil {
		return ""
	}
	return r.RatString()
}

func decimalFromString(s string) (*big.Rat, error) {
	r := new(big.Rat)
	if _, ok := r.SetString(s); !ok {
		return nil, fmt.Errorf("row: invalid decimal literal %q", s)
	}
	return r, nil
}
