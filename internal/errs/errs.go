package errs

import "errors"

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindInput
	KindArithmetic
	KindConsistency
	KindPolicy
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindInput:
		return "input"
	case KindArithmetic:
		return "arithmetic"
	case KindConsistency:
		return "consistency"
	case KindPolicy:
		return "policy"
	default:
		return "unknown"
	}
}

var (
	ErrMultisigAccountNotAuthorized = errors.New("account is not authorized to sign this instruction")
	ErrMultisigAlreadySigned        = errors.New("account has already signed this instruction")
	ErrMultisigAlreadyExecuted      = errors.New("this instruction has already been executed")
	ErrInvalidTokenPairConfig       = errors.New("invalid token pair config")
	ErrInvalidTokenAmount           = errors.New("invalid token amount")
	ErrInvalidTokenPairPrice        = errors.New("invalid token pair price")
	ErrDepositsNotAllowed           = errors.New("deposits are not allowed")
	ErrWithdrawalsNotAllowed        = errors.New("withdrawals are not allowed")
	ErrCranksNotAllowed             = errors.New("cranks are not allowed")
	ErrSettlementsNotAllowed        = errors.New("settlements are not allowed")
	ErrInvalidEnvironment           = errors.New("instruction is not allowed in this environment")
	ErrOrderSideMismatch            = errors.New("order side mismatch")
	ErrTimeInForceMismatch          = errors.New("time in force mismatch")
	ErrInvalidTimeInForce           = errors.New("invalid time in force")
	ErrInvalidPoolAddress           = errors.New("invalid pool address")
	ErrLockedPool                   = errors.New("pool is locked")
	ErrExpiredPool                  = errors.New("pool is expired")
	ErrInvalidPoolState             = errors.New("invalid pool state")
	ErrMathOverflow                 = errors.New("overflow in arithmetic operation")
	ErrUnsupportedOracle            = errors.New("unsupported price oracle")
	ErrInvalidOracleAccount         = errors.New("invalid oracle account")
	ErrInvalidOracleState           = errors.New("invalid oracle state")
	ErrStaleOraclePrice             = errors.New("stale oracle price")
	ErrInvalidOraclePrice           = errors.New("invalid oracle price")
	ErrMaxSlippage                  = errors.New("max slippage exceeded")
	ErrNothingToSettle              = errors.New("nothing to settle")
	ErrInvalidSettlementSide        = errors.New("invalid settlement side")
	ErrSettlementAmountTooSmall     = errors.New("settlement amount is too small")
	ErrSettlementAmountTooLarge     = errors.New("settlement amount is too large")
	ErrSettlementError              = errors.New("settlement error")
	ErrSettlementPriceOutOfBounds   = errors.New("settlement price is out of bounds")
	ErrIllegalOwner                 = errors.New("caller does not own the order")
)

var kinds = map[error]Kind{
	ErrMultisigAccountNotAuthorized: KindInput,
	ErrMultisigAlreadySigned:        KindInput,
	ErrMultisigAlreadyExecuted:      KindInput,
	ErrInvalidTokenPairConfig:       KindConfig,
	ErrInvalidTokenAmount:           KindInput,
	ErrInvalidTokenPairPrice:        KindPolicy,
	ErrDepositsNotAllowed:           KindConfig,
	ErrWithdrawalsNotAllowed:        KindConfig,
	ErrCranksNotAllowed:             KindConfig,
	ErrSettlementsNotAllowed:        KindConfig,
	ErrInvalidEnvironment:           KindConfig,
	ErrOrderSideMismatch:            KindInput,
	ErrTimeInForceMismatch:          KindInput,
	ErrInvalidTimeInForce:           KindInput,
	ErrInvalidPoolAddress:           KindInput,
	ErrLockedPool:                   KindPolicy,
	ErrExpiredPool:                  KindPolicy,
	ErrInvalidPoolState:             KindInput,
	ErrMathOverflow:                 KindArithmetic,
	ErrUnsupportedOracle:            KindConfig,
	ErrInvalidOracleAccount:         KindConfig,
	ErrInvalidOracleState:           KindPolicy,
	ErrStaleOraclePrice:             KindPolicy,
	ErrInvalidOraclePrice:           KindPolicy,
	ErrMaxSlippage:                  KindPolicy,
	ErrNothingToSettle:              KindPolicy,
	ErrInvalidSettlementSide:        KindInput,
	ErrSettlementAmountTooSmall:     KindPolicy,
	ErrSettlementAmountTooLarge:     KindPolicy,
	ErrSettlementError:              KindConsistency,
	ErrSettlementPriceOutOfBounds:   KindPolicy,
	ErrIllegalOwner:                 KindInput,
}

// KindOf returns the kind of the first known sentinel wrapped by err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for sentinel, kind := range kinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// Retryable reports whether the same call may succeed later with new
// parameters or at a later time.
func Retryable(err error) bool {
	return KindOf(err) == KindPolicy
}

// Code returns the short name of the sentinel wrapped by err, or "unknown".
func Code(err error) string {
	for sentinel, name := range codes {
		if errors.Is(err, sentinel) {
			return name
		}
	}
	return "unknown"
}

var codes = map[error]string{
	ErrMultisigAccountNotAuthorized: "MultisigAccountNotAuthorized",
	ErrMultisigAlreadySigned:        "MultisigAlreadySigned",
	ErrMultisigAlreadyExecuted:      "MultisigAlreadyExecuted",
	ErrInvalidTokenPairConfig:       "InvalidTokenPairConfig",
	ErrInvalidTokenAmount:           "InvalidTokenAmount",
	ErrInvalidTokenPairPrice:        "InvalidTokenPairPrice",
	ErrDepositsNotAllowed:           "DepositsNotAllowed",
	ErrWithdrawalsNotAllowed:        "WithdrawalsNotAllowed",
	ErrCranksNotAllowed:             "CranksNotAllowed",
	ErrSettlementsNotAllowed:        "SettlementsNotAllowed",
	ErrInvalidEnvironment:           "InvalidEnvironment",
	ErrOrderSideMismatch:            "OrderSideMismatch",
	ErrTimeInForceMismatch:          "TimeInForceMismatch",
	ErrInvalidTimeInForce:           "InvalidTimeInForce",
	ErrInvalidPoolAddress:           "InvalidPoolAddress",
	ErrLockedPool:                   "LockedPool",
	ErrExpiredPool:                  "ExpiredPool",
	ErrInvalidPoolState:             "InvalidPoolState",
	ErrMathOverflow:                 "MathOverflow",
	ErrUnsupportedOracle:            "UnsupportedOracle",
	ErrInvalidOracleAccount:         "InvalidOracleAccount",
	ErrInvalidOracleState:           "InvalidOracleState",
	ErrStaleOraclePrice:             "StaleOraclePrice",
	ErrInvalidOraclePrice:           "InvalidOraclePrice",
	ErrMaxSlippage:                  "MaxSlippage",
	ErrNothingToSettle:              "NothingToSettle",
	ErrInvalidSettlementSide:        "InvalidSettlementSide",
	ErrSettlementAmountTooSmall:     "SettlementAmountTooSmall",
	ErrSettlementAmountTooLarge:     "SettlementAmountTooLarge",
	ErrSettlementError:              "SettlementError",
	ErrSettlementPriceOutOfBounds:   "SettlementPriceOutOfBounds",
	ErrIllegalOwner:                 "IllegalOwner",
}
