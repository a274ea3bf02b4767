package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in cents. On the wire it is a decimal number of dollars.
type Money int64

// Dollars converts a whole-dollar amount to Money.
func Dollars(d int64) Money {
	return Money(d * 100)
}

// FromFloat rounds a dollar amount to the nearest cent.
func FromFloat(d float64) Money {
	return Money(math.Round(d * 100))
}

// Cents returns the amount in the provider's minor unit.
func (m Money) Cents() int64 {
	return int64(m)
}

// Float returns the amount in dollars.
func (m Money) Float() float64 {
	return float64(m) / 100
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Float(), 'f', -1, 64)), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	*m = FromFloat(f)
	return nil
}

// UnmarshalYAML reads a dollar amount from config and catalog files.
func (m *Money) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var f float64
	if err := unmarshal(&f); err != nil {
		return err
	}
	*m = FromFloat(f)
	return nil
}
