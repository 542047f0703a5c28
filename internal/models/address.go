package models

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for path segments that are not a 20-byte
// hex account address.
var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress decodes a hex account address with or without the 0x prefix.
// Mixed-case input is accepted without verifying the EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: expected 40 hex characters, optionally 0x-prefixed", ErrInvalidAddress)
	}
	return common.HexToAddress(s), nil
}
