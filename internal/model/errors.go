package model

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Stable failure reasons.
const (
	ReasonIdenticalTokens     = "Identical tokens"
	ReasonAmountsPositive     = "Amounts must be positive"
	ReasonAmountPositive      = "Amount must be positive"
	ReasonSharesPositive      = "Shares must be positive"
	ReasonInsufficientMinted  = "Insufficient liquidity minted"
	ReasonInvalidAdmin        = "Invalid admin"
	ReasonUserLiquidity       = "Insufficient user liquidity"
	ReasonPoolLiquidity       = "Insufficient liquidity"
	ReasonOutputAmount        = "Insufficient output amount"
	ReasonIncompatibleLayout  = "Incompatible storage layout"
	ReasonAlreadyInitialized  = "Initializable: contract is already initialized"
	ReasonRenounceForSelfOnly = "AccessControl: can only renounce roles for self"
)

// ValidationError reports malformed input.
type ValidationError struct {
	Reason string
	Detail string
}

func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Reason + ": " + e.Detail
	}
	return e.Reason
}

// InsufficientBalanceError reports a withdrawal or output that exceeds what is held.
type InsufficientBalanceError struct {
	Reason string
}

func NewInsufficientBalanceError(reason string) error {
	return &InsufficientBalanceError{Reason: reason}
}

func (e *InsufficientBalanceError) Error() string {
	return e.Reason
}

// AuthorizationError reports a principal acting without the required role.
type AuthorizationError struct {
	Principal common.Address
	Role      Role
	Reason    string
}

func (e *AuthorizationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("AccessControl: account %s is missing role %s", e.Principal.Hex(), e.Role.Hex())
}

// AlreadyInitializedError reports a repeated initialize call.
type AlreadyInitializedError struct{}

func (e *AlreadyInitializedError) Error() string {
	return ReasonAlreadyInitialized
}

// ConflictError reports that a record an operation read was changed by another
// writer before the operation committed. Nothing of the operation was applied.
type ConflictError struct {
	Record string
}

func (e *ConflictError) Error() string {
	return "concurrent update of " + e.Record
}

// ErrorKind classifies err into the public taxonomy, "internal" for anything else.
func ErrorKind(err error) string {
	var (
		validation *ValidationError
		balance    *InsufficientBalanceError
		auth       *AuthorizationError
		initErr    *AlreadyInitializedError
		conflict   *ConflictError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &balance):
		return "insufficient_balance"
	case errors.As(err, &auth):
		return "authorization"
	case errors.As(err, &initErr):
		return "already_initialized"
	case errors.As(err, &conflict):
		return "conflict"
	default:
		return "internal"
	}
}
