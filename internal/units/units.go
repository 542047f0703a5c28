// Package units converts between wei and ether.
package units

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimal places between wei and ether.
const EtherDecimals = 18

// WeiPerEther is 10^18. Callers must not mutate it.
var WeiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(EtherDecimals), nil)

// ToEther returns wei / 10^18 truncated toward zero. For the non-negative
// balances returned by a node this is floor division.
func ToEther(wei *big.Int) *big.Int {
	if wei == nil {
		return new(big.Int)
	}
	return new(big.Int).Quo(wei, WeiPerEther)
}

// FormatEther renders wei as an exact ether amount with trailing zeros
// trimmed, e.g. "1.5" or "0.000000000000000001".
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals).String()
}
