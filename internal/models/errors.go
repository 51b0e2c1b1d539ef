package models

import "errors"

var (
	ErrNotFound         = errors.New("record not found")
	ErrUnknownAccount   = errors.New("unknown account")
	ErrDuplicatePayment = errors.New("payment already recorded")
	ErrAlreadyMatched   = errors.New("payment is already matched")
	ErrRunInProgress    = errors.New("another run holds the job lock")
	ErrInvalidAmount    = errors.New("invalid amount")
)
