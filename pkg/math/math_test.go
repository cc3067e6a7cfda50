package math

import (
	"testing"

	. "github.com/weberc2/blockfs/pkg/types"
)

func TestDivRoundUp(t *testing.T) {
	for _, testCase := range []struct {
		a, b, wanted Byte
	}{
		{0, BlockSize, 0},
		{1, BlockSize, 1},
		{BlockSize, BlockSize, 1},
		{BlockSize + 1, BlockSize, 2},
		{5000, BlockSize, 2},
	} {
		if found := DivRoundUp(testCase.a, testCase.b); found != testCase.wanted {
			t.Fatalf(
				"DivRoundUp(%d, %d): wanted `%d`; found `%d`",
				testCase.a,
				testCase.b,
				testCase.wanted,
				found,
			)
		}
	}
}

func TestMin(t *testing.T) {
	if found := Min(Block(3), Block(7)); found != 3 {
		t.Fatalf("Min(): wanted `3`; found `%d`", found)
	}
	if found := Min(Byte(-1), Byte(0)); found != -1 {
		t.Fatalf("Min(): wanted `-1`; found `%d`", found)
	}
}
