// Package custom serves the durable registry of user supplied collectibles.
// Entries are re-checked on chain at fetch time, so tokens transferred away
// drop out of the batch while their registry rows stay untouched.
package custom

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/chain"
	"github.com/openwalletd/nftd/lib/chain/types"
	"github.com/openwalletd/nftd/lib/metadata"
	"github.com/openwalletd/nftd/lib/normalize"
	"github.com/openwalletd/nftd/lib/store"
	"github.com/openwalletd/nftd/lib/util"
)

// Custom reads registered entries from the DB and resolves their live
// ownership and balances through the per network chain lookups.
type Custom struct {
	db   store.DB
	norm map[string]*normalize.Normalizer
}

// New returns a Custom source over the registry in db. A network without a
// chain lookup still serves its entries, just with unresolved balances.
func New(db store.DB, chains map[string]chain.Lookup) *Custom {
	norm := make(map[string]*normalize.Normalizer, len(chains))
	meta := metadata.New()
	for net, lookup := range chains {
		norm[net] = normalize.New(lookup, meta)
	}

	return &Custom{db: db, norm: norm}
}

// Name identifies the source.
func (s *Custom) Name() string { return assets.SourceCustom }

// Networks lists the networks with a chain lookup configured.
func (s *Custom) Networks() []string {
	return util.SortedKeys(s.norm)
}

// Fetch loads the registered entries for the account and resolves each one
// on chain. Entries no longer owned are skipped with a warning, entries
// whose balance lookup fails keep an unknown balance. Contracts are
// resolved once per address and dropped when name or symbol stay empty.
func (s *Custom) Fetch(ctx context.Context, account, network string) ([]assets.Collectible, []assets.Contract, error) {
	entries, err := s.db.GetCustoms(account, network)
	if err != nil {
		return nil, nil, fmt.Errorf("custom entries %s: %w", network, err)
	}

	norm := s.norm[network]
	var cols []assets.Collectible
	var cons []assets.Contract
	seen := make(map[string]bool)
	for _, e := range entries {
		col := assets.Collectible{
			Address:     e.Address,
			TokenID:     e.TokenID,
			Name:        e.Name,
			Image:       e.Image,
			Description: e.Description,
			Standard:    e.Standard,
			Source:      assets.SourceCustom,
		}
		if norm == nil {
			cols = append(cols, col)
			continue
		}
		col, err := norm.Collectible(ctx, col, account, false)
		if err != nil {
			if errors.Is(err, types.ErrNotOwned) {
				log.Printf("[%s] custom %s no longer owned by %s, skipping", network, col.Key(), account)
			} else {
				log.Printf("[%s] custom %s skipped, err:%e", network, col.Key(), err)
			}
			continue
		}
		cols = append(cols, col)

		addr := assets.ChecksumAddress(col.Address)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		con, err := norm.Contract(ctx, assets.Contract{Address: col.Address, Standard: col.Standard})
		if err != nil {
			log.Printf("[%s] custom contract %s dropped, err:%e", network, addr, err)
			continue
		}
		cons = append(cons, con)
	}

	return cols, cons, nil
}
