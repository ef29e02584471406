package model

import (
	"errors"
	"fmt"
)

type ErrorCode int8

const (
	CodeUnknownError ErrorCode = 0
	CodeOK           ErrorCode = 1

	CodePaused              ErrorCode = -1
	CodeBannedAccount       ErrorCode = -2
	CodeInsufficientBalance ErrorCode = -3
	CodeNotInAllowList      ErrorCode = -4
	CodeUnauthorized        ErrorCode = -5
	CodeInvalidInput        ErrorCode = -6

	CodeAssetNotSupported ErrorCode = -11
	CodeStalePrice        ErrorCode = -12
	CodeInvalidPrice      ErrorCode = -13

	CodeTooEarly ErrorCode = -21

	CodeMintLimitExceeded      ErrorCode = -31
	CodeRedeemLimitExceeded    ErrorCode = -32
	CodeTotalSupplyCapExceeded ErrorCode = -33

	CodeMintLessThanMinimum          ErrorCode = -41
	CodeFirstDepositLessThanRequired ErrorCode = -42
	CodeRedeemLessThanMinimum        ErrorCode = -43

	CodeInsufficientLiquidity ErrorCode = -51
	CodeUnknownRequest        ErrorCode = -52
)

var codeMessages = map[ErrorCode]string{
	CodeUnknownError:                 "Unknown error",
	CodeOK:                           "Operation successful",
	CodePaused:                       "Paused",
	CodeBannedAccount:                "Banned account",
	CodeInsufficientBalance:          "Insufficient balance",
	CodeNotInAllowList:               "Not in allow list",
	CodeUnauthorized:                 "Unauthorized",
	CodeInvalidInput:                 "Invalid input",
	CodeAssetNotSupported:            "Asset not supported",
	CodeStalePrice:                   "Stale price",
	CodeInvalidPrice:                 "Invalid price",
	CodeTooEarly:                     "Too early",
	CodeMintLimitExceeded:            "Mint limit exceeded",
	CodeRedeemLimitExceeded:          "Redeem limit exceeded",
	CodeTotalSupplyCapExceeded:       "Total supply cap exceeded",
	CodeMintLessThanMinimum:          "Mint less than minimum",
	CodeFirstDepositLessThanRequired: "First deposit less than required",
	CodeRedeemLessThanMinimum:        "Redeem less than minimum",
	CodeInsufficientLiquidity:        "Insufficient liquidity",
	CodeUnknownRequest:               "Unknown redemption request",
}

func (code ErrorCode) String() string {
	msg, ok := codeMessages[code]
	if !ok {
		return "Unrecognized error code"
	}
	return msg
}

// Error is a rejected operation. Two errors are equal under errors.Is when
// their codes match, so callers compare against the Err* sentinels.
type Error struct {
	Code   ErrorCode
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code carried by err, CodeOK for nil and
// CodeUnknownError for errors raised outside the engine.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknownError
}

var (
	ErrPaused                       = &Error{Code: CodePaused}
	ErrBannedAccount                = &Error{Code: CodeBannedAccount}
	ErrInsufficientBalance          = &Error{Code: CodeInsufficientBalance}
	ErrNotInAllowList               = &Error{Code: CodeNotInAllowList}
	ErrUnauthorized                 = &Error{Code: CodeUnauthorized}
	ErrInvalidInput                 = &Error{Code: CodeInvalidInput}
	ErrAssetNotSupported            = &Error{Code: CodeAssetNotSupported}
	ErrStalePrice                   = &Error{Code: CodeStalePrice}
	ErrInvalidPrice                 = &Error{Code: CodeInvalidPrice}
	ErrTooEarly                     = &Error{Code: CodeTooEarly}
	ErrMintLimitExceeded            = &Error{Code: CodeMintLimitExceeded}
	ErrRedeemLimitExceeded          = &Error{Code: CodeRedeemLimitExceeded}
	ErrTotalSupplyCapExceeded       = &Error{Code: CodeTotalSupplyCapExceeded}
	ErrMintLessThanMinimum          = &Error{Code: CodeMintLessThanMinimum}
	ErrFirstDepositLessThanRequired = &Error{Code: CodeFirstDepositLessThanRequired}
	ErrRedeemLessThanMinimum        = &Error{Code: CodeRedeemLessThanMinimum}
	ErrInsufficientLiquidity        = &Error{Code: CodeInsufficientLiquidity}
	ErrUnknownRequest               = &Error{Code: CodeUnknownRequest}
)
