// Package normalize fills collectible and contract fields a source omitted,
// falling back between on-chain lookups and the token metadata document.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/chain"
	"github.com/openwalletd/nftd/lib/chain/types"
	"github.com/openwalletd/nftd/lib/metadata"
)

// Errors returned
var (
	// ErrIncomplete marks a contract whose name or symbol could not be
	// resolved. Such contracts are excluded, not stored half-empty.
	ErrIncomplete = errors.New("contract name or symbol unresolved")
)

// Normalizer resolves missing fields on collectibles and contracts. Fill
// failures are tolerated (the field stays empty), validation failures are
// returned so the caller can exclude the entity.
type Normalizer struct {
	Chain    chain.Lookup
	Metadata metadata.Fetcher
}

// New returns a Normalizer using the given collaborators.
func New(c chain.Lookup, m metadata.Fetcher) *Normalizer {
	return &Normalizer{Chain: c, Metadata: m}
}

// Collectible fills the missing fields of c. When owner is non-empty the
// balance is resolved live: ERC721 balances are fixed to 1 once ownership is
// confirmed, ERC1155 balances come from the chain and stay nil (unknown)
// when the lookup fails. A token the owner does not hold returns
// types.ErrNotOwned. detectFromAPI prefers the token metadata document over
// the on-chain name when both could fill a field.
func (n *Normalizer) Collectible(ctx context.Context, c assets.Collectible, owner string, detectFromAPI bool) (assets.Collectible, error) {
	if c.Standard == "" {
		std, err := n.Chain.Standard(ctx, c.Address)
		if err != nil {
			return c, fmt.Errorf("standard %s: %w", c.Address, err)
		}
		c.Standard = std
	}

	if owner != "" && c.Balance == nil {
		switch c.Standard {
		case assets.ERC721:
			owns, err := n.Chain.OwnsToken(ctx, c.Address, owner, c.TokenID)
			if err != nil {
				return c, fmt.Errorf("ownership %s: %w", c.Key(), err)
			}
			if !owns {
				return c, types.ErrNotOwned
			}
			c.Balance = big.NewInt(1)
		case assets.ERC1155:
			bal, err := n.Chain.BalanceOf(ctx, c.Address, owner, c.TokenID)
			if err == nil {
				if bal.Sign() == 0 {
					return c, types.ErrNotOwned
				}
				c.Balance = bal
			}
			// lookup failure leaves the balance unknown, not zero
		}
	}

	if c.Name != "" && c.Image != "" && c.Description != "" {
		return c, nil
	}
	if detectFromAPI {
		n.fillFromDocument(ctx, &c)
		n.fillFromChain(ctx, &c)
	} else {
		n.fillFromChain(ctx, &c)
		n.fillFromDocument(ctx, &c)
	}

	return c, nil
}

// Contract fills name, symbol and standard of c. Contracts that answer
// neither capability probe, or whose name or symbol cannot be resolved, are
// rejected.
func (n *Normalizer) Contract(ctx context.Context, c assets.Contract) (assets.Contract, error) {
	if c.Standard == "" {
		std, err := n.Chain.Standard(ctx, c.Address)
		if err != nil {
			return c, fmt.Errorf("standard %s: %w", c.Address, err)
		}
		c.Standard = std
	}
	if c.Name == "" {
		if name, err := n.Chain.Name(ctx, c.Address); err == nil {
			c.Name = name
		}
	}
	if c.Symbol == "" {
		if sym, err := n.Chain.Symbol(ctx, c.Address); err == nil {
			c.Symbol = sym
		}
	}
	if c.Name == "" || c.Symbol == "" {
		return c, fmt.Errorf("contract %s: %w", c.Address, ErrIncomplete)
	}
	c.Address = assets.ChecksumAddress(c.Address)

	return c, nil
}

// fillFromChain resolves the collectible name from the contract name.
func (n *Normalizer) fillFromChain(ctx context.Context, c *assets.Collectible) {
	if c.Name != "" {
		return
	}
	if name, err := n.Chain.Name(ctx, c.Address); err == nil {
		c.Name = name
	}
}

// fillFromDocument resolves name, image and description from the token's
// metadata document. Any failure on the way leaves the fields as they were.
func (n *Normalizer) fillFromDocument(ctx context.Context, c *assets.Collectible) {
	if c.Name != "" && c.Image != "" && c.Description != "" {
		return
	}
	uri, err := n.Chain.TokenURI(ctx, c.Address, c.TokenID, c.Standard)
	if err != nil {
		return
	}
	var doc metadata.Document
	if err := n.Metadata.JSON(ctx, uri, &doc); err != nil {
		return
	}
	if c.Name == "" {
		c.Name = doc.Name
	}
	if c.Image == "" {
		c.Image = doc.Picture()
	}
	if c.Description == "" {
		c.Description = doc.Description
	}
}
