// Package types common chain lookup types.
package types

import (
	"errors"
)

// Token is the on-chain metadata of a fungible asset.
type Token struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Error codes.
var (
	ErrNotOwned   = errors.New("token is not owned by the account")
	ErrNoStandard = errors.New("contract answers neither the erc721 nor the erc1155 capability probe")
	ErrBadTokenID = errors.New("token id is neither a decimal nor a 0x-prefixed hex number")
	ErrNoURI      = errors.New("contract did not return a token URI")
)
