// Package chain defines the interface for on-chain lookups required by the
// collectible detection pipeline.
package chain

import (
	"context"
	"log"
	"math/big"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/chain/ethereum"
	"github.com/openwalletd/nftd/lib/chain/types"
	"github.com/openwalletd/nftd/lib/config"
)

// Lookup is the read-only view of a chain node used to resolve collectible
// ownership and metadata. Implementations must be safe for concurrent use.
type Lookup interface {
	Close()
	// Name and Symbol resolve contract-level metadata. The selectors are
	// shared between ERC20 and ERC721, so these also serve fungible tokens.
	Name(ctx context.Context, contract string) (string, error)
	Symbol(ctx context.Context, contract string) (string, error)
	// Standard probes the contract's ERC-165 capability flags.
	Standard(ctx context.Context, contract string) (assets.Standard, error)
	// OwnsToken reports whether owner holds the ERC721 token id.
	OwnsToken(ctx context.Context, contract, owner, tokenID string) (bool, error)
	// BalanceOf returns the ERC1155 balance of owner for the token id.
	BalanceOf(ctx context.Context, contract, owner, tokenID string) (*big.Int, error)
	// TokenURI resolves the metadata URI for a token, with the ERC1155
	// "{id}" placeholder already substituted.
	TokenURI(ctx context.Context, contract, tokenID string, std assets.Standard) (string, error)
	// Token resolves fungible (ERC20) metadata.
	Token(ctx context.Context, contract string) (types.Token, error)
}

// Init loads a lookup client per configured network into a map.
func Init(cc []config.ChainConfig) (map[string]Lookup, error) {
	m := make(map[string]Lookup)

	for _, ch := range cc {
		if ch.Node == "" {
			log.Printf("[%s] no node configured, chain lookups disabled", ch.Name)

			continue
		}
		l, err := ethereum.Init(ch.Node, ch.Secret)
		if err != nil {
			return nil, err
		}
		m[ch.Name] = l
	}

	return m, nil
}

// End closes gracefully all the chain clients opened.
func End(m map[string]Lookup) {
	for _, l := range m {
		l.Close()
	}
}
