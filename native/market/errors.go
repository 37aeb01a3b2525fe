package market

import (
	"errors"

	"marketledger/core/state"
	"marketledger/crypto"
	"marketledger/native/fees"
	"marketledger/native/token"
	"marketledger/native/vault"
)

// Category groups errors by what the caller got wrong.
type Category string

const (
	CategoryAuthorization   Category = "authorization"
	CategoryState           Category = "state"
	CategoryValue           Category = "value"
	CategoryExternalAccount Category = "external_account"
	CategoryPolicy          Category = "policy"
	CategoryInternal        Category = "internal"
)

// Error is a marketplace failure with a stable numeric code.
type Error struct {
	Code     int
	Category Category
	Message  string
}

func (e *Error) Error() string { return e.Message }

func newError(code int, category Category, msg string) *Error {
	return &Error{Code: code, Category: category, Message: msg}
}

var (
	ErrInvalidAuthority             = newError(6000, CategoryAuthorization, "invalid marketplace authority")
	ErrListingNotActive             = newError(6001, CategoryState, "listing is not active")
	ErrOrderAlreadySettled          = newError(6002, CategoryState, "order already settled")
	ErrInvalidOffchainSignature     = newError(6003, CategoryPolicy, "signature verification failed")
	ErrContestResolved              = newError(6004, CategoryState, "contest already resolved")
	ErrSubscriptionInactive         = newError(6005, CategoryState, "subscription inactive")
	ErrSubscriptionPeriodNotReached = newError(6006, CategoryState, "payment period not reached")
	ErrMathOverflow                 = newError(6007, CategoryValue, "math overflow")
	ErrPriceMismatch                = newError(6008, CategoryValue, "listing price does not match expected value")
	ErrEscrowBalanceTooLow          = newError(6009, CategoryValue, "escrow balance too low")
	ErrInvalidFeeBps                = newError(6010, CategoryValue, "fee basis points must be <= 10000")
	ErrInvalidPrizeAmount           = newError(6011, CategoryValue, "prizes must be positive")
	ErrContestDeadlineNotReached    = newError(6012, CategoryState, "contest deadline has not passed")
	ErrContestDeadlinePassed        = newError(6013, CategoryState, "contest deadline already passed")
	ErrWinnerAccountMismatch        = newError(6014, CategoryAuthorization, "winner account mismatch")
	ErrTokenNotWhitelisted          = newError(6015, CategoryPolicy, "token mint not whitelisted")
	ErrTokenAlreadyWhitelisted      = newError(6016, CategoryPolicy, "token already in whitelist")
	ErrWhitelistFull                = newError(6017, CategoryPolicy, "whitelist is full")
	ErrMissingTokenAccounts         = newError(6018, CategoryExternalAccount, "missing token accounts for token payment flow")
	ErrTokenAccountOwnerMismatch    = newError(6019, CategoryExternalAccount, "token account owner mismatch")
	ErrTokenAccountMintMismatch     = newError(6020, CategoryExternalAccount, "token account mint mismatch")
	ErrAmountMustBePositive         = newError(6021, CategoryValue, "amount must be greater than zero")
	ErrRentExemptionViolation       = newError(6022, CategoryValue, "withdrawal would leave vault below rent-exempt minimum")
	ErrInvalidTokenProgram          = newError(6023, CategoryExternalAccount, "invalid token program")

	ErrInsufficientBalance  = newError(6100, CategoryValue, "insufficient balance")
	ErrRecordNotFound       = newError(6101, CategoryState, "record not found")
	ErrRecordExists         = newError(6102, CategoryState, "record already exists")
	ErrRecordKindMismatch   = newError(6103, CategoryExternalAccount, "record kind mismatch")
	ErrAddressMismatch      = newError(6104, CategoryExternalAccount, "record address does not match its derivation seeds")
	ErrInvalidPeriod        = newError(6105, CategoryValue, "subscription period must be positive")
	ErrInstancePlanMismatch = newError(6106, CategoryExternalAccount, "subscription instance belongs to another plan")
	ErrConfigNotInitialized = newError(6107, CategoryState, "marketplace config not initialized")
	ErrConfigInitialized    = newError(6108, CategoryState, "marketplace config already initialized")
	ErrTokenAccountNotEmpty = newError(6109, CategoryValue, "token account still holds a balance")

	errNilState = errors.New("market engine: state not configured")
)

// substrateErrors maps failures raised below the engine onto marketplace
// errors. Both errors stay matchable through errors.Is.
var substrateErrors = []struct {
	from error
	to   *Error
}{
	{vault.ErrInsufficientBalance, ErrInsufficientBalance},
	{vault.ErrRentExemptionViolation, ErrRentExemptionViolation},
	{vault.ErrBalanceOverflow, ErrMathOverflow},
	{vault.ErrSelfTransfer, ErrInvalidAuthority},
	{state.ErrRecordKindMismatch, ErrRecordKindMismatch},
	{state.ErrRecordNotFound, ErrRecordNotFound},
	{token.ErrInsufficientFunds, ErrInsufficientBalance},
	{token.ErrOwnerMismatch, ErrTokenAccountOwnerMismatch},
	{token.ErrMintMismatch, ErrTokenAccountMintMismatch},
	{token.ErrMintAuthority, ErrInvalidAuthority},
	{token.ErrInvalidAuthority, ErrInvalidAuthority},
	{token.ErrAccountNotFound, ErrRecordNotFound},
	{token.ErrMintNotFound, ErrRecordNotFound},
	{token.ErrAccountExists, ErrRecordExists},
	{token.ErrMintExists, ErrRecordExists},
	{token.ErrSupplyOverflow, ErrMathOverflow},
	{token.ErrNonZeroBalance, ErrTokenAccountNotEmpty},
	{token.ErrNativeMint, ErrTokenAccountMintMismatch},
	{fees.ErrMathOverflow, ErrMathOverflow},
	{fees.ErrInvalidBps, ErrInvalidFeeBps},
	{crypto.ErrInvalidSignature, ErrInvalidOffchainSignature},
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var merr *Error
	if errors.As(err, &merr) {
		return err
	}
	for _, m := range substrateErrors {
		if errors.Is(err, m.from) {
			return &wrapped{outer: m.to, inner: err}
		}
	}
	return err
}

type wrapped struct {
	outer *Error
	inner error
}

func (w *wrapped) Error() string   { return w.outer.Message + ": " + w.inner.Error() }
func (w *wrapped) Unwrap() []error { return []error{w.outer, w.inner} }

// CodeOf returns the stable code for err, or 0 when err carries none.
func CodeOf(err error) int {
	var merr *Error
	if errors.As(err, &merr) {
		return merr.Code
	}
	return 0
}

// CategoryOf returns the category for err. Errors without a code are internal.
func CategoryOf(err error) Category {
	var merr *Error
	if errors.As(err, &merr) {
		return merr.Category
	}
	return CategoryInternal
}
