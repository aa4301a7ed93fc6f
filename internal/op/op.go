// Package op - integer helpers.
package op

// Integer - integer types.
type Integer interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// PosMod - modulus operator that always returns positive number.
func PosMod[T Integer](x, m T) T {
	return (x%m + m) % m
}

// CeilDiv - x / m rounded up. x must not be negative and m must be positive.
func CeilDiv[T Integer](x, m T) T {
	return (x + m - 1) / m
}
