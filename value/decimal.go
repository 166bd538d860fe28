package value

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// decimalContext fixes Decimal arithmetic at 28 significant digits with
// banker's rounding (round-half-to-even), per spec §3/§4.D. This mirrors
// cuelang.org/go/internal/core/adt's own apdCtx (apd.BaseContext with a
// fixed Precision), adjusted from CUE's 24 digits to Typst's mandated 28
// and from apd's default rounding to explicit ToNearestEven.
var decimalContext = func() apd.Context {
	c := apd.BaseContext
	c.Precision = 28
	c.Rounding = apd.RoundHalfEven
	return c
}()

// Decimal is a 28-digit fixed-point number.
type Decimal struct{ D apd.Decimal }

func (Decimal) Kind() Kind     { return KindDecimal }
func (d Decimal) Repr() string { return d.D.Text('f') }
func (Decimal) isValue()       {}

func NewDecimalFromString(s string) (Decimal, error) {
	var d apd.Decimal
	_, _, err := apd.BaseContext.SetString(&d, s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal literal %q: %w", s, err)
	}
	return Decimal{D: d}, nil
}

func NewDecimalFromInt(i int64) Decimal {
	var d apd.Decimal
	d.SetInt64(i)
	return Decimal{D: d}
}

// decimalOp applies a two-operand apd operation under decimalContext and
// turns any inexact/overflow condition the spec cares about into a Go
// error (mixing decimal with float is rejected earlier, in arith.go).
func decimalOp(op func(*apd.Decimal, *apd.Decimal, *apd.Decimal) (apd.Condition, error), a, b Decimal) (Decimal, error) {
	var res apd.Decimal
	cond, err := op(&res, &a.D, &b.D)
	if err != nil {
		return Decimal{}, err
	}
	if cond.Overflow() || cond.Underflow() {
		return Decimal{}, fmt.Errorf("decimal value out of range")
	}
	return Decimal{D: res}, nil
}

func DecimalAdd(a, b Decimal) (Decimal, error) {
	return decimalOp(func(z, x, y *apd.Decimal) (apd.Condition, error) { return decimalContext.Add(z, x, y) }, a, b)
}

func DecimalSub(a, b Decimal) (Decimal, error) {
	return decimalOp(func(z, x, y *apd.Decimal) (apd.Condition, error) { return decimalContext.Sub(z, x, y) }, a, b)
}

func DecimalMul(a, b Decimal) (Decimal, error) {
	return decimalOp(func(z, x, y *apd.Decimal) (apd.Condition, error) { return decimalContext.Mul(z, x, y) }, a, b)
}

func DecimalQuo(a, b Decimal) (Decimal, error) {
	if b.D.IsZero() {
		return Decimal{}, fmt.Errorf("divided by zero")
	}
	return decimalOp(func(z, x, y *apd.Decimal) (apd.Condition, error) { return decimalContext.Quo(z, x, y) }, a, b)
}

func DecimalCompare(a, b Decimal) int {
	return a.D.Cmp(&b.D)
}

func DecimalEqual(a, b Decimal) bool {
	return a.D.Cmp(&b.D) == 0
}
