// Package assets defines the asset model shared by the detector, the sources
// and the REST API: fungible tokens, collectibles (NFTs) and their contracts,
// partitioned by (account, network) scope.
package assets

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Standard identifies the contract interface a collectible implements.
// Comparisons are done on the canonical lower-case form.
type Standard string

// Supported collectible standards.
const (
	ERC721  Standard = "erc721"
	ERC1155 Standard = "erc1155"
)

// Source labels record which adapter contributed an entity.
const (
	SourceCustom  = "custom"
	SourceIndexer = "indexer"
	SourceMarket  = "market"
)

// Errors returned
var (
	ErrBadStandard = errors.New("unknown collectible standard")
	ErrBadAddress  = errors.New("malformed contract address")
)

// ParseStandard returns the canonical Standard for s. Input is matched
// case-insensitively, so "ERC721", "erc721" and "Erc721" are all valid.
func ParseStandard(s string) (Standard, error) {
	switch Standard(strings.ToLower(s)) {
	case ERC721:
		return ERC721, nil
	case ERC1155:
		return ERC1155, nil
	}

	return "", ErrBadStandard
}

// Collectible is a single NFT owned by an account. Balance is nil while
// unknown, which is not the same as zero: a zero balance means the token is
// not owned and the entry is never stored.
type Collectible struct {
	Address     string   `json:"address" bson:"address"`
	TokenID     string   `json:"tokenId" bson:"tokenid"`
	Name        string   `json:"name" bson:"name"`
	Image       string   `json:"image" bson:"image"`
	Description string   `json:"description" bson:"description"`
	Standard    Standard `json:"standard" bson:"standard"`
	Balance     *big.Int `json:"balance" bson:"-"`
	Source      string   `json:"source,omitempty" bson:"source"`
}

// Key returns the identity of the collectible within a scope: the lower-case
// contract address joined to the token id. Two entries with equal keys are
// the same collectible regardless of which source reported them.
func (c Collectible) Key() string {
	return strings.ToLower(c.Address) + "_" + c.TokenID
}

// Contract describes a collectible (NFT) contract. Contracts are keyed by
// checksummed address and are only kept when both Name and Symbol resolved.
type Contract struct {
	Address     string   `json:"address" bson:"address"`
	Name        string   `json:"name" bson:"name"`
	Symbol      string   `json:"symbol" bson:"symbol"`
	Logo        string   `json:"logo" bson:"logo"`
	Description string   `json:"description" bson:"description"`
	Standard    Standard `json:"standard" bson:"standard"`
}

// Token is a fungible (ERC20-type) asset tracked for an account.
type Token struct {
	Address  string `json:"address" bson:"address"`
	Name     string `json:"name" bson:"name"`
	Symbol   string `json:"symbol" bson:"symbol"`
	Decimals uint8  `json:"decimals" bson:"decimals"`
	Image    string `json:"image,omitempty" bson:"image"`
}

// State is a full snapshot of the store: the per-account per-network trees
// plus the projection of the active (account, network) scope.
type State struct {
	AllTokens       map[string]map[string][]Token       `json:"allTokens"`
	AllCollectibles map[string]map[string][]Collectible `json:"allCollectibles"`
	AllContracts    map[string]map[string][]Contract    `json:"allCollectibleContracts"`

	Tokens       []Token       `json:"tokens"`
	Collectibles []Collectible `json:"collectibles"`
	Contracts    []Contract    `json:"collectibleContracts"`
}

// ChecksumAddress normalizes a hex address to its EIP-55 checksummed form.
func ChecksumAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// ValidAddress returns true if addr parses as a 20-byte hex address.
func ValidAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// cloneBalance copies a balance pointer so callers cannot mutate stored state.
func cloneBalance(b *big.Int) *big.Int {
	if b == nil {
		return nil
	}

	return new(big.Int).Set(b)
}

// CloneCollectibles returns a copy of cs with balances detached.
func CloneCollectibles(cs []Collectible) []Collectible {
	if cs == nil {
		return nil
	}
	out := make([]Collectible, len(cs))
	for i, c := range cs {
		c.Balance = cloneBalance(c.Balance)
		out[i] = c
	}

	return out
}
