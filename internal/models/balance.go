package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"weibalance/internal/units"
)

// Balance is the response body of a balance query. Amounts are decimal
// strings so that consumers never lose precision.
type Balance struct {
	Address string `json:"address"`
	Wei     string `json:"wei"`
	Balance string `json:"balance"` // whole ether, floored
	Ether   string `json:"ether"`   // exact
}

// NewBalance builds the response for address holding wei.
func NewBalance(address common.Address, wei *big.Int) Balance {
	return Balance{
		Address: address.Hex(),
		Wei:     wei.String(),
		Balance: units.ToEther(wei).String(),
		Ether:   units.FormatEther(wei),
	}
}
