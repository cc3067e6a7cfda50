// Package math holds the integer helpers shared by the block and byte
// arithmetic. Every helper accepts the named integer types (Block, Byte, Ino).
package math

type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

func Min[T Integer](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// DivRoundUp divides `a` by `b`, rounding any remainder up. `a` must not be
// negative.
func DivRoundUp[T Integer](a, b T) T {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}
