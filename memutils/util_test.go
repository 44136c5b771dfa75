package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/UditDey/nuke3d/memutils"
)

func TestPadding(t *testing.T) {
	testCases := map[string]struct {
		Address   int
		Alignment uint
		Expected  int
	}{
		"ZeroAlignment":        {Address: 10, Alignment: 0, Expected: 0},
		"ZeroAddress":          {Address: 0, Alignment: 16, Expected: 0},
		"AlreadyAligned":       {Address: 64, Alignment: 16, Expected: 0},
		"OneBytePast":          {Address: 17, Alignment: 16, Expected: 15},
		"PartwayThroughStride": {Address: 10, Alignment: 16, Expected: 6},
		"LargeAlignment":       {Address: 100, Alignment: 64, Expected: 28},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, testCase.Expected, memutils.Padding(testCase.Address, testCase.Alignment))
		})
	}
}

func TestPaddingAligns(t *testing.T) {
	for address := 0; address < 200; address++ {
		for _, alignment := range []uint{1, 2, 4, 8, 16, 64, 128} {
			padded := address + memutils.Padding(address, alignment)
			require.Equal(t, 0, padded%int(alignment), "address %d alignment %d", address, alignment)
		}
	}
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 16))
	require.Equal(t, 16, memutils.AlignUp(1, 16))
	require.Equal(t, 16, memutils.AlignUp(16, 16))
	require.Equal(t, 32, memutils.AlignUp(17, 16))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, 0, memutils.AlignDown(15, 16))
	require.Equal(t, 16, memutils.AlignDown(16, 16))
	require.Equal(t, 16, memutils.AlignDown(31, 16))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(64, "value"))
	require.NoError(t, memutils.CheckPow2(1, "value"))

	err := memutils.CheckPow2(100, "value")
	require.Error(t, err)
	require.ErrorIs(t, err, memutils.PowerOfTwoError)
}
