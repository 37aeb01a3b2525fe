package fees

import (
	"errors"

	"github.com/holiman/uint256"
)

// MaxBps is the basis-point denominator; a rate of MaxBps takes the full amount.
const MaxBps = 10_000

var (
	ErrInvalidBps   = errors.New("fees: basis points must be <= 10000")
	ErrMathOverflow = errors.New("fees: math overflow")
)

var bpsDenominator = uint256.NewInt(MaxBps)

// ValidateBps checks a fee rate at the point it is configured. ComputeFee does
// not repeat the check.
func ValidateBps(bps uint16) error {
	if bps > MaxBps {
		return ErrInvalidBps
	}
	return nil
}

// ComputeFee returns floor(amount * bps / 10000) using a 256-bit intermediate
// so the product never wraps for any uint64 amount.
func ComputeFee(amount uint64, bps uint16) (uint64, error) {
	if bps == 0 {
		return 0, nil
	}
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(amount), uint256.NewInt(uint64(bps)))
	if overflow {
		return 0, ErrMathOverflow
	}
	fee := product.Div(product, bpsDenominator)
	if !fee.IsUint64() {
		return 0, ErrMathOverflow
	}
	return fee.Uint64(), nil
}

// ApplyInput captures the gross amount of a settlement and the configured fee
// rate.
type ApplyInput struct {
	Gross  uint64
	FeeBps uint16
}

// ApplyResult splits the gross amount into the treasury fee and the net payout
// to the counterparty. Fee + Net always equals the gross amount.
type ApplyResult struct {
	Fee uint64
	Net uint64
}

// Apply evaluates the fee for the supplied input. A fee larger than the gross
// amount cannot occur for a validated rate and is reported as an overflow.
func Apply(input ApplyInput) (ApplyResult, error) {
	fee, err := ComputeFee(input.Gross, input.FeeBps)
	if err != nil {
		return ApplyResult{}, err
	}
	if fee > input.Gross {
		return ApplyResult{}, ErrMathOverflow
	}
	return ApplyResult{Fee: fee, Net: input.Gross - fee}, nil
}
