package domain

import "errors"

// Precondition errors returned by vault operations
var (
	ErrVaultNotActive      = errors.New("vault is not active")
	ErrVaultNotPaused      = errors.New("vault is not paused")
	ErrTooEarlyToExecute   = errors.New("too early to execute cycle")
	ErrAllCyclesCompleted  = errors.New("all cycles have been completed")
	ErrInsufficientBalance = errors.New("insufficient custody balance")
)

// Authorization errors returned by session key validation
var (
	ErrSessionKeyNotActive = errors.New("session key is not active")
	ErrSessionKeyExpired   = errors.New("session key has expired")
	ErrPerTxLimitExceeded  = errors.New("amount exceeds per-transaction limit")
	ErrTotalLimitExceeded  = errors.New("amount exceeds total spending limit")
	ErrTargetNotAllowed    = errors.New("target is not in allowed list")
	ErrTooManyTargets      = errors.New("allowed targets exceed maximum of 10")
)

// Execution and authority errors
var (
	ErrSlippageExceeded = errors.New("slippage exceeded: received less than minimum")
	ErrUnauthorized     = errors.New("caller is not authorized for this action")
	ErrNotFound         = errors.New("record not found")
)
