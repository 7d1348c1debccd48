package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("1500000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", got.String())
}

func TestParseAmountZero(t *testing.T) {
	got, err := ParseAmount("0")
	require.NoError(t, err)
	assert.Zero(t, got.Sign())
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1.5", "-3"} {
		_, err := ParseAmount(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "42", FormatAmount(big.NewInt(42)))
	assert.Equal(t, "0", FormatAmount(nil))
}

func TestValidFeeRate(t *testing.T) {
	half := new(big.Int).Div(FeeScale, big.NewInt(2))
	overMax := new(big.Int).Add(FeeScale, big.NewInt(1))

	assert.True(t, ValidFeeRate(big.NewInt(0)))
	assert.True(t, ValidFeeRate(half))
	assert.True(t, ValidFeeRate(new(big.Int).Set(FeeScale)))
	assert.False(t, ValidFeeRate(overMax))
	assert.False(t, ValidFeeRate(big.NewInt(-1)))
	assert.False(t, ValidFeeRate(nil))
}

func TestAddressIsZero(t *testing.T) {
	assert.True(t, ZeroAddress.IsZero())
	assert.True(t, Address("").IsZero())
	assert.False(t, Address("0x0000000000000000000000000000000000000001").IsZero())
}

func TestRejectionUnwrapping(t *testing.T) {
	err := PolicyViolation(ReasonNotSeller)
	rej, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, RejectPolicy, rej.Kind)
	assert.Equal(t, ReasonNotSeller, rej.Reason)

	_, ok = AsRejection(assert.AnError)
	assert.False(t, ok)
}
