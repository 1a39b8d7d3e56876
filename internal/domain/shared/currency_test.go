package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencyExponent(t *testing.T) {
	assert.Equal(t, int32(2), CurrencyExponent("USD"))
	assert.Equal(t, int32(2), CurrencyExponent("eur"))
	assert.Equal(t, int32(3), CurrencyExponent("KWD"))
	assert.Equal(t, int32(0), CurrencyExponent("JPY"))
	assert.Equal(t, int32(0), CurrencyExponent("krw"))
}

func TestToMinorUnits(t *testing.T) {
	t.Run("two-decimal currency", func(t *testing.T) {
		minor, err := ToMinorUnits(decimal.RequireFromString("123.45"), "USD")
		require.NoError(t, err)
		assert.Equal(t, int64(12345), minor)
	})

	t.Run("zero-decimal currency", func(t *testing.T) {
		minor, err := ToMinorUnits(decimal.RequireFromString("500"), "JPY")
		require.NoError(t, err)
		assert.Equal(t, int64(500), minor)
	})

	t.Run("three-decimal currency", func(t *testing.T) {
		minor, err := ToMinorUnits(decimal.RequireFromString("1.250"), "BHD")
		require.NoError(t, err)
		assert.Equal(t, int64(1250), minor)
	})

	t.Run("rejects sub-minor precision", func(t *testing.T) {
		_, err := ToMinorUnits(decimal.RequireFromString("1.005"), "USD")
		require.Error(t, err)
		assert.True(t, IsKind(err, KindValidation))

		_, err = ToMinorUnits(decimal.RequireFromString("100.5"), "JPY")
		require.Error(t, err)
	})
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, FromMinorUnits(12345, "USD").Equal(decimal.RequireFromString("123.45")))
	assert.True(t, FromMinorUnits(500, "JPY").Equal(decimal.NewFromInt(500)))
	assert.True(t, FromMinorUnits(1250, "KWD").Equal(decimal.RequireFromString("1.250")))
}

func TestAmountsCoherent(t *testing.T) {
	assert.True(t, AmountsCoherent(10000, 2000, 8000))
	assert.True(t, AmountsCoherent(10000, 2000, 7995)) // at tolerance
	assert.True(t, AmountsCoherent(10000, 2000, 8005))
	assert.False(t, AmountsCoherent(10000, 2000, 7994))
	assert.False(t, AmountsCoherent(10000, 2000, 8006))
}

func TestAmountBounds(t *testing.T) {
	bounds := AmountBounds{Min: 500, Max: 50000}
	assert.True(t, bounds.Contains(500))
	assert.True(t, bounds.Contains(50000))
	assert.False(t, bounds.Contains(499))
	assert.False(t, bounds.Contains(50001))
}
