package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountParsing(t *testing.T) {
	t.Run("should parse and round to two decimals", func(t *testing.T) {
		a, err := NewAmount("100.005")
		require.NoError(t, err)
		// Half away from zero.
		assert.Equal(t, "100.01", a.String())
	})

	t.Run("should reject malformed input", func(t *testing.T) {
		_, err := NewAmount("abc")
		assert.Error(t, err)
	})

	t.Run("should avoid float accumulation error", func(t *testing.T) {
		a := NewAmountFromFloat(0.1)
		b := NewAmountFromFloat(0.2)
		assert.Equal(t, "0.30", a.Add(b).String())
	})
}

func TestRate(t *testing.T) {
	t.Run("should reject non-positive rates", func(t *testing.T) {
		_, err := NewRate("0")
		assert.Error(t, err)
		_, err = NewRate("-150")
		assert.Error(t, err)
	})

	t.Run("should convert quantity to local currency", func(t *testing.T) {
		r, err := NewRate("150.25")
		require.NoError(t, err)

		got := r.Convert(decimal.NewFromFloat(2.5))
		assert.Equal(t, "375.63", got.String())
	})

	t.Run("should compute deviation in basis points", func(t *testing.T) {
		locked, _ := NewRate("150.0")
		current, _ := NewRate("151.0")

		// 1/150 = 0.6667% = 66.67 bps
		bps := locked.DeviationBps(current)
		assert.InDelta(t, 66.67, bps.InexactFloat64(), 0.01)
	})

	t.Run("should treat deviation as symmetric", func(t *testing.T) {
		locked, _ := NewRate("150.0")
		down, _ := NewRate("149.0")

		bps := locked.DeviationBps(down)
		assert.True(t, bps.IsPositive())
	})
}

func TestBpsFee(t *testing.T) {
	t.Run("should apply basis points with rounding", func(t *testing.T) {
		gross := NewAmountFromInt(12800)
		fee := gross.MulBps(25)
		assert.Equal(t, "32.00", fee.String())
	})
}

func TestAmountJSON(t *testing.T) {
	t.Run("should round trip through JSON string", func(t *testing.T) {
		a := NewAmountFromFloat(1234.5)
		data, err := a.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, `"1234.50"`, string(data))

		var back Amount
		require.NoError(t, back.UnmarshalJSON(data))
		assert.True(t, a.Equal(back))
	})
}
