package core

import "errors"

var (
	ErrNotSubscribed   = errors.New("chat is not subscribed")
	ErrWalletExists    = errors.New("wallet name already exists")
	ErrUnknownWallet   = errors.New("unknown wallet")
	ErrAlreadyTracked  = errors.New("wallet is already tracked")
	ErrNotTracked      = errors.New("wallet is not tracked")
	ErrInvalidAddress  = errors.New("invalid wallet address")
	ErrInvalidSettings = errors.New("invalid alert settings")
)
