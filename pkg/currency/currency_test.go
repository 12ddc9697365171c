package currency

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		want   string
	}{
		{"whole shillings", KSH(44850), "KSH 44,850"},
		{"order total", KSH(96876), "KSH 96,876"},
		{"small", KSH(500), "KSH 500"},
		{"zero", 0, "KSH 0"},
		{"rounds up", FromFloat(13349.5), "KSH 13,350"},
		{"millions", KSH(1234567), "KSH 1,234,567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPrice(tt.amount))
		})
	}
}

func TestFormatPriceWithDecimals(t *testing.T) {
	assert.Equal(t, "KSH 44,850.00", FormatPriceWithDecimals(KSH(44850)))
	assert.Equal(t, "KSH 7,176.50", FormatPriceWithDecimals(FromFloat(7176.5)))
}

func TestApplyRate(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		bp     int
		want   Amount
	}{
		{"eight percent of two chairs", KSH(89700), 800, KSH(7176)},
		{"rounds half up", Amount(1), 5000, Amount(1)},
		{"rounds down below half", Amount(1), 4999, Amount(0)},
		{"zero rate", KSH(100), 0, 0},
		{"negative amount", Amount(-1), 5000, Amount(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.amount.ApplyRate(tt.bp))
		})
	}
}

func TestArithmetic(t *testing.T) {
	subtotal := KSH(44850).Mul(2)
	assert.Equal(t, KSH(89700), subtotal)
	assert.Equal(t, KSH(96876), subtotal.Add(subtotal.ApplyRate(800)))
	assert.Equal(t, int64(9687600), subtotal.Add(subtotal.ApplyRate(800)).Cents())
	assert.InDelta(t, 448.5, Amount(44850).Shillings(), 1e-9)
}

func TestConvertUSDToKSH(t *testing.T) {
	assert.Equal(t, KSH(44850), ConvertUSDToKSH(299))
	assert.Equal(t, KSH(150), ConvertUSDToKSH(1))
	assert.Equal(t, KSH(75), ConvertUSDToKSH(0.5))
}

func TestAmountJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Price Amount `json:"price"`
	}{Price: FromFloat(44850.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"price": 44850.5}`, string(data))

	var got struct {
		Price Amount `json:"price"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"price": 22350}`), &got))
	assert.Equal(t, KSH(22350), got.Price)

	require.NoError(t, json.Unmarshal([]byte(`{"price": null}`), &got))
	assert.Equal(t, KSH(22350), got.Price)

	assert.Error(t, json.Unmarshal([]byte(`{"price": "cheap"}`), &got))
}
