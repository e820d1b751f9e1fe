// Package kernel implements the engine's fixed-point numeric primitives.
//
// Every formula in the reward calculator, quality assessor, anti-bot scorer
// and referral evaluator routes its arithmetic through this package so that
// replays are bit-stable: the same sequence of events always produces the
// same sequence of Amounts, regardless of host float rounding.
package kernel

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// FractionalDigits is the fixed-point precision carried by every Amount, per
// the numeric kernel contract.
const FractionalDigits = 18

func init() {
	decimal.DivisionPrecision = FractionalDigits
}

// Amount is a non-negative-by-convention fixed-point value. Negative amounts
// are permitted at the type level (some intermediate z-scores and residuals
// are signed); internal/model does not check the sign of its accumulators.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// One is the multiplicative identity.
var One = Amount{d: decimal.New(1, 0)}

// FromFloat builds an Amount from a float64 literal (formula constants,
// config-loaded weights). Never use this for values derived from untrusted
// input — use FromString.
func FromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f).Truncate(FractionalDigits)}
}

// FromInt builds an Amount from an integer.
func FromInt(i int64) Amount {
	return Amount{d: decimal.New(i, 0)}
}

// FromString parses a decimal string (wire payloads, persisted rows).
func FromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("kernel: invalid amount %q: %w", s, err)
	}
	return Amount{d: d.Truncate(FractionalDigits)}, nil
}

func (a Amount) String() string { return a.d.StringFixed(FractionalDigits) }

// MarshalJSON/UnmarshalJSON delegate to decimal.Decimal's own wire format
// (a JSON string) rather than the zero-value struct literal encoding/json
// would otherwise produce for the unexported d field — every JSON-facing
// caller (internal/store/cache, the Postgres processed_event_ids column,
// the CLI's --json outcome printer) round-trips an Amount through these.
func (a Amount) MarshalJSON() ([]byte, error) { return a.d.MarshalJSON() }

func (a *Amount) UnmarshalJSON(data []byte) error { return a.d.UnmarshalJSON(data) }

// Float64 projects to float64 for logging/metrics only — never feed the
// result back into a formula.
func (a Amount) Float64() float64 { f, _ := a.d.Float64(); return f }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// Sign returns -1, 0 or 1.
func (a Amount) Sign() int { return a.d.Sign() }

// Cmp compares two amounts the way decimal.Decimal does.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// GreaterThan, LessThan, GreaterThanOrEqual, LessThanOrEqual are comparison
// sugar used throughout the formula code for readability.
func (a Amount) GreaterThan(b Amount) bool        { return a.d.GreaterThan(b.d) }
func (a Amount) LessThan(b Amount) bool           { return a.d.LessThan(b.d) }
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }
func (a Amount) LessThanOrEqual(b Amount) bool    { return a.d.LessThanOrEqual(b.d) }

// maxSafeAmount bounds magnitudes the kernel will operate on before
// declaring an overflow. Mining/XP/RP quantities never legitimately approach
// this; it exists purely to make runaway multiplication chains fail loudly
// instead of silently producing astronomical garbage.
var maxSafeAmount = decimal.New(1, 30) // 1e30

// OverflowError is returned by any kernel operation whose result would
// exceed the safe magnitude bound. It is always fatal to the caller's
// transaction — see spec NumericOverflow.
type OverflowError struct {
	Op   string
	Args []string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("kernel: numeric overflow in %s(%v)", e.Op, e.Args)
}

func checkMagnitude(op string, result decimal.Decimal, args ...decimal.Decimal) error {
	if result.Abs().GreaterThan(maxSafeAmount) {
		argStrs := make([]string, len(args))
		for i, a := range args {
			argStrs[i] = a.String()
		}
		return &OverflowError{Op: op, Args: argStrs}
	}
	return nil
}

// Add returns a+b, or an OverflowError if the result exceeds the safe bound.
func Add(a, b Amount) (Amount, error) {
	r := a.d.Add(b.d)
	if err := checkMagnitude("add", r, a.d, b.d); err != nil {
		return Amount{}, err
	}
	return Amount{d: r.Truncate(FractionalDigits)}, nil
}

// Sub returns a-b, or an OverflowError if the result exceeds the safe bound.
// Sub does not clamp at zero; use SaturatingSub for accumulators that must
// stay non-negative.
func Sub(a, b Amount) (Amount, error) {
	r := a.d.Sub(b.d)
	if err := checkMagnitude("sub", r, a.d, b.d); err != nil {
		return Amount{}, err
	}
	return Amount{d: r.Truncate(FractionalDigits)}, nil
}

// SaturatingSub returns max(0, a-b). Never overflows since the magnitude can
// only shrink.
func SaturatingSub(a, b Amount) Amount {
	r := a.d.Sub(b.d)
	if r.IsNegative() {
		return Zero
	}
	return Amount{d: r.Truncate(FractionalDigits)}
}

// Mul returns a*b, or an OverflowError if the result exceeds the safe bound.
func Mul(a, b Amount) (Amount, error) {
	r := a.d.Mul(b.d)
	if err := checkMagnitude("mul", r, a.d, b.d); err != nil {
		return Amount{}, err
	}
	return Amount{d: r.Truncate(FractionalDigits)}, nil
}

// MulChain multiplies a sequence of amounts left-to-right, in the order
// given. The reward calculator's formulas specify a fixed evaluation order
// (spec §4.4 Determinism and ordering) so replays are bit-stable; this
// helper enforces that the caller supplies that order rather than relying
// on Go's evaluation of a chained expression.
func MulChain(factors ...Amount) (Amount, error) {
	if len(factors) == 0 {
		return One, nil
	}
	acc := factors[0]
	var err error
	for _, f := range factors[1:] {
		acc, err = Mul(acc, f)
		if err != nil {
			return Amount{}, err
		}
	}
	return acc, nil
}

// Div returns a/b. Division by zero is a programmer error in this domain
// (every divisor in the spec's formulas is a compile-time constant or a
// value guarded upstream) and panics rather than silently producing Inf.
func Div(a, b Amount) (Amount, error) {
	if b.IsZero() {
		panic("kernel: division by zero")
	}
	r := a.d.DivRound(b.d, FractionalDigits)
	if err := checkMagnitude("div", r, a.d, b.d); err != nil {
		return Amount{}, err
	}
	return Amount{d: r}, nil
}

// Clamp bounds x to [lo, hi] inclusive.
func Clamp(x, lo, hi Amount) Amount {
	if x.LessThan(lo) {
		return lo
	}
	if x.GreaterThan(hi) {
		return hi
	}
	return x
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// expNegMaxArg is the upper bound past which exp_neg saturates to zero per
// the numeric kernel contract (spec §4.1: "bounded for x in [0,50]").
var expNegMaxArg = FromFloat(50)

// ExpNeg computes exp(-x) for x in [0, 50], saturating to 0 for x > 50 and
// to 1 for x <= 0. The exponential is evaluated in float64 (math.Exp) and
// re-quantized to fixed point: the formulas that consume it (regression factors, decay
// curves) are themselves approximations over real-world aggregates, so
// float64-precision transcendental evaluation followed by truncation to 18
// fractional digits is the same tradeoff the rest of the numeric kernel
// makes for pow_frac.
func ExpNeg(x Amount) Amount {
	if x.Sign() <= 0 {
		return One
	}
	if x.GreaterThan(expNegMaxArg) {
		return Zero
	}
	f := x.Float64()
	r := math.Exp(-f)
	return FromFloat(r)
}

// PowFrac computes base^exponent for a small bounded exponent (formulas only
// ever raise positive bases to exponents in a narrow range, e.g. decay
// curves and tier regressions). base must be > 0.
func PowFrac(base Amount, exponent float64) (Amount, error) {
	if base.Sign() <= 0 {
		return Amount{}, fmt.Errorf("kernel: pow_frac requires a positive base, got %s", base)
	}
	if exponent == 0 {
		return One, nil
	}
	f := base.Float64()
	r := math.Pow(f, exponent)
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return Amount{}, &OverflowError{Op: "pow_frac", Args: []string{base.String(), fmt.Sprintf("%g", exponent)}}
	}
	result := FromFloat(r)
	if err := checkMagnitude("pow_frac", result.d); err != nil {
		return Amount{}, err
	}
	return result, nil
}
