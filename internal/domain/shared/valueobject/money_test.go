package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney_RoundsToScale(t *testing.T) {
	m, err := NewMoney(decimal.RequireFromString("100.555"), IDR)
	require.NoError(t, err)
	assert.Equal(t, "100.56", m.Amount().StringFixed(2))
	assert.Equal(t, IDR, m.Currency())

	_, err = NewMoney(decimal.NewFromInt(1), "")
	assert.Error(t, err)
}

func TestMoney_AddSubtract(t *testing.T) {
	a := NewMoneyIDRFromInt(60000)
	b := NewMoneyIDRFromInt(40000)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.True(t, sum.Amount().Equal(decimal.NewFromInt(100000)))

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.NewFromInt(20000)))

	usd, _ := NewMoney(decimal.NewFromInt(1), USD)
	_, err = a.Add(usd)
	assert.Error(t, err)
}

func TestMoney_Min(t *testing.T) {
	a := NewMoneyIDRFromInt(50)
	b := NewMoneyIDRFromInt(70)
	assert.True(t, a.Min(b).Equals(a))
	assert.True(t, b.Min(a).Equals(a))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "80.00", Percent(decimal.NewFromInt(8), decimal.NewFromInt(10)).StringFixed(2))
	assert.Equal(t, "33.33", Percent(decimal.NewFromInt(1), decimal.NewFromInt(3)).StringFixed(2))
	assert.True(t, Percent(decimal.NewFromInt(5), decimal.Zero).IsZero())
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, "2500.00", PercentOf(decimal.NewFromInt(100000), decimal.RequireFromString("2.5")).StringFixed(2))
}

func TestFormatIDR(t *testing.T) {
	assert.Equal(t, "Rp 1.234.567,89", FormatIDR(decimal.RequireFromString("1234567.891")))
	assert.Equal(t, "Rp 0,00", FormatIDR(decimal.Zero))
	assert.Equal(t, "-Rp 40.000,00", FormatIDR(decimal.NewFromInt(-40000)))
	assert.Equal(t, "Rp 200.000,00", NewMoneyIDRFromInt(200000).Format())
}

func TestMoney_JSONAndSQL(t *testing.T) {
	m := NewMoneyIDRFromInt(100000)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"100000.00","currency":"IDR"}`, string(data))

	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "100000.00", v)

	var scanned Money
	require.NoError(t, scanned.Scan("2500.5"))
	assert.Equal(t, "2500.50", scanned.Amount().StringFixed(2))
	assert.Equal(t, IDR, scanned.Currency())

	require.NoError(t, scanned.Scan(int64(7)))
	assert.True(t, scanned.Amount().Equal(decimal.NewFromInt(7)))
}
