package math

import (
	"math/big"
)

// Lot scaling helpers. Order books quote prices in quote-lot units and sizes
// in base lots; everything economic is derived by scaling with the market's
// lot sizes. Intermediate products go through big.Int so a large resting
// order cannot silently overflow int64.

// PriceNative converts a locked price in quote-lot units to native quote
// units.
func PriceNative(lockedPrice, quoteLotSize int64) int64 {
	return lockedPrice * quoteLotSize
}

// BaseNative converts base lots to native base units.
func BaseNative(lots, baseLotSize int64) int64 {
	return lots * baseLotSize
}

// Notional returns sizeLots * lockedPrice * quoteLotSize in native quote
// units. Saturates at int64 bounds rather than wrapping.
func Notional(sizeLots, lockedPrice, quoteLotSize int64) int64 {
	n := new(big.Int).Mul(big.NewInt(sizeLots), big.NewInt(lockedPrice))
	n.Mul(n, big.NewInt(quoteLotSize))
	if !n.IsInt64() {
		if n.Sign() < 0 {
			return -int64max
		}
		return int64max
	}
	return n.Int64()
}

// AddSaturating adds two int64 values, clamping at the int64 bounds.
func AddSaturating(a, b int64) int64 {
	sum := a + b
	if a > 0 && b > 0 && sum < 0 {
		return int64max
	}
	if a < 0 && b < 0 && sum > 0 {
		return -int64max
	}
	return sum
}

const int64max = int64(^uint64(0) >> 1)
