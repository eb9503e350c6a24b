// Package pricing handles USD amounts with 8 implied decimals and ETH/USD quotes.
package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of implied decimals of on-chain USD amounts.
const Decimals = 8

var (
	ErrNegative    = errors.New("negative amount")
	ErrPrecision   = errors.New("more than 8 decimal places")
	ErrZeroPrice   = errors.New("price must be positive")
	weiPerETH      = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	zeroInt        = new(big.Int)
	errNotAnAmount = errors.New("amount must be a decimal integer string")
)

// USD is a fixed-point amount: 5000000000 is $50.00.
type USD struct {
	v *big.Int
}

func NewUSD(v *big.Int) USD {
	if v == nil {
		return USD{}
	}
	return USD{v: new(big.Int).Set(v)}
}

// ParseUSD reads a human amount such as "$1,250.5" exactly.
func ParseUSD(s string) (USD, error) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return USD{}, fmt.Errorf("parse usd %q: %w", s, err)
	}
	if d.IsNegative() {
		return USD{}, fmt.Errorf("parse usd %q: %w", s, ErrNegative)
	}
	if !d.Equal(d.Truncate(Decimals)) {
		return USD{}, fmt.Errorf("parse usd %q: %w", s, ErrPrecision)
	}
	return USD{v: d.Shift(Decimals).BigInt()}, nil
}

// Int returns a copy of the raw fixed-point integer.
func (u USD) Int() *big.Int {
	if u.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(u.v)
}

func (u USD) IsZero() bool {
	return u.v == nil || u.v.Sign() == 0
}

func (u USD) Cmp(o USD) int {
	return u.Int().Cmp(o.Int())
}

// String is the raw integer, the form used on the wire.
func (u USD) String() string {
	return u.Int().String()
}

// Display renders dollars with two decimals, e.g. "50.00".
func (u USD) Display() string {
	return decimal.NewFromBigInt(u.Int(), -Decimals).StringFixed(2)
}

func (u USD) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *USD) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return errNotAnAmount
	}
	if n.Cmp(zeroInt) < 0 {
		return ErrNegative
	}
	u.v = n
	return nil
}

// USDToWei converts a USD amount to wei at usdPerETH, rounding up so the
// payment never falls short of the USD price.
func USDToWei(amount USD, usdPerETH decimal.Decimal) (*big.Int, error) {
	if !usdPerETH.IsPositive() {
		return nil, ErrZeroPrice
	}
	price := usdPerETH.Shift(Decimals).Round(0).BigInt()
	if price.Sign() == 0 {
		return nil, ErrZeroPrice
	}
	num := new(big.Int).Mul(amount.Int(), weiPerETH)
	q, r := new(big.Int).QuoRem(num, price, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q, nil
}

// WeiToUSD converts wei to a USD amount at usdPerETH, truncating.
func WeiToUSD(wei *big.Int, usdPerETH decimal.Decimal) USD {
	price := usdPerETH.Shift(Decimals).Round(0).BigInt()
	n := new(big.Int).Mul(wei, price)
	return USD{v: n.Quo(n, weiPerETH)}
}
