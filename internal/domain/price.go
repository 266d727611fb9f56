package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Price is a fixed-point amount with two fractional digits, held as cents.
type Price int64

// MaxPriceDigits is the total number of significant digits a price may use.
const MaxPriceDigits = 5

// ErrInvalidPrice indicates the value is not a valid price.
var ErrInvalidPrice = errors.New("invalid price")

var priceContext = apd.BaseContext.WithPrecision(MaxPriceDigits + 10)

// ParsePrice parses a decimal string such as "5.5" or "5.50".
// More than two fractional digits, more than MaxPriceDigits digits in total,
// and negative values are rejected.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}

	d, _, err := apd.NewFromString(s)
	if err != nil || d.Form != apd.Finite {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPrice, s)
	}
	if d.Negative && !d.IsZero() {
		return 0, fmt.Errorf("%w: must not be negative", ErrInvalidPrice)
	}

	var q apd.Decimal
	cond, err := priceContext.Quantize(&q, d, -2)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	if cond.Inexact() {
		return 0, fmt.Errorf("%w: ensure that there are no more than 2 decimal places", ErrInvalidPrice)
	}
	if q.NumDigits() > MaxPriceDigits {
		return 0, fmt.Errorf("%w: ensure that there are no more than %d digits in total", ErrInvalidPrice, MaxPriceDigits)
	}

	q.Exponent = 0
	cents, err := q.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return Price(cents), nil
}

// MustParsePrice is ParsePrice that panics on error. Intended for tests and
// constants.
func MustParsePrice(s string) Price {
	p, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Cents returns the amount in cents.
func (p Price) Cents() int64 {
	return int64(p)
}

// String formats the price with exactly two fractional digits.
func (p Price) String() string {
	return apd.New(int64(p), -2).Text('f')
}

// MarshalJSON encodes the price as a decimal string, e.g. "5.50".
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: null", ErrInvalidPrice)
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPrice, err)
		}
		raw = s
	}

	parsed, err := ParsePrice(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
