package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	IDR Currency = "IDR" // Indonesian Rupiah (default)
	USD Currency = "USD"
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = IDR

// Scale is the number of fractional digits kept for every stored amount.
const Scale int32 = 2

var hundred = decimal.NewFromInt(100)

// Round rounds an amount to the money scale (half away from zero).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Percent returns part/whole*100 rounded to the money scale, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(hundred).Div(whole).Round(Scale)
}

// PercentOf returns pct percent of amount, rounded to the money scale.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(Scale)
}

// Money is an immutable monetary amount in a single currency.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates Money rounded to Scale.
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{amount: Round(amount), currency: currency}, nil
}

// NewMoneyIDR creates Money in IDR
func NewMoneyIDR(amount decimal.Decimal) Money {
	return Money{amount: Round(amount), currency: IDR}
}

// NewMoneyIDRFromInt creates Money in IDR from a whole-rupiah amount
func NewMoneyIDRFromInt(amount int64) Money {
	return NewMoneyIDR(decimal.NewFromInt(amount))
}

// NewMoneyFromString parses an amount string
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// ZeroIDR returns a zero amount in IDR
func ZeroIDR() Money {
	return Money{amount: decimal.Zero, currency: IDR}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency      { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }
func (m Money) IsNegative() bool        { return m.amount.IsNegative() }

// Add returns the sum; currencies must match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Subtract returns the difference; currencies must match
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Min returns the smaller of two amounts in the same currency
func (m Money) Min(other Money) Money {
	if other.amount.LessThan(m.amount) {
		return other
	}
	return m
}

// Equals compares amount and currency
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String returns "100000.00 IDR"
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(Scale), m.currency)
}

// Format renders the amount for Indonesian readers, e.g. "Rp 1.234.567,89".
func (m Money) Format() string {
	return FormatIDR(m.amount)
}

// FormatIDR renders an amount with Indonesian digit grouping without passing through float.
func FormatIDR(amount decimal.Decimal) string {
	rounded := Round(amount)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	whole := rounded.Truncate(0)
	cents := rounded.Sub(whole).Mul(hundred).IntPart()
	p := message.NewPrinter(language.Indonesian)
	return fmt.Sprintf("%sRp %s,%02d", sign, p.Sprintf("%d", whole.IntPart()), cents)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(Scale),
		Currency: m.currency,
	})
}

// Value implements driver.Valuer; only the amount is stored
func (m Money) Value() (driver.Value, error) {
	return m.amount.StringFixed(Scale), nil
}

// Scan implements sql.Scanner; the currency defaults to IDR
func (m *Money) Scan(value any) error {
	var d decimal.NullDecimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("cannot scan %T into Money: %w", value, err)
	}
	m.amount = Round(d.Decimal)
	if m.currency == "" {
		m.currency = DefaultCurrency
	}
	return nil
}
