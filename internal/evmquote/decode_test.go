package evmquote

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
)

func leftPad32(v *big.Int) []byte {
	b := v.Bytes()
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func TestDecodeLeadingUint256_DecodesExactWord(t *testing.T) {
	want := big.NewInt(123456789)
	got, err := decodeLeadingUint256(leftPad32(want))
	require.NoError(t, err)
	assert.Equal(t, want, got.ToBig())
}

func TestDecodeLeadingUint256_RejectsShortData(t *testing.T) {
	_, err := decodeLeadingUint256([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDecodeLeadingUint256_IgnoresTrailingWords(t *testing.T) {
	want := big.NewInt(42)
	data := append(leftPad32(want), leftPad32(big.NewInt(999))...)
	got, err := decodeLeadingUint256(data)
	require.NoError(t, err)
	assert.Equal(t, want, got.ToBig())
}

func TestDecodeAmountOut_DispatchesOnKind(t *testing.T) {
	want := big.NewInt(7)
	data := leftPad32(want)

	gotCP, err := decodeAmountOut(graph.DecodeConstantProduct, data)
	require.NoError(t, err)
	assert.Equal(t, want, gotCP.ToBig())

	gotCL, err := decodeAmountOut(graph.DecodeConcentratedLiquidity, data)
	require.NoError(t, err)
	assert.Equal(t, want, gotCL.ToBig())

	_, err = decodeAmountOut(graph.DecodeKind(99), data)
	assert.Error(t, err)
}

func TestSupersetOf(t *testing.T) {
	a := graph.Token{}
	a[19] = 1
	b := graph.Token{}
	b[19] = 2

	m := map[graph.Token]float64{a: 1.0}
	assert.True(t, supersetOf(m, []graph.Token{a}))
	assert.False(t, supersetOf(m, []graph.Token{a, b}))
}
