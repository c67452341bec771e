package detector

import (
	"github.com/openwalletd/nftd/lib/assets"
)

// mergeSources folds the three source batches into the final collectible
// set for one scope. Per index key:
//
//  1. a custom entry always wins and the provider entries for its key are
//     discarded,
//  2. otherwise, when the marketplace returned anything at all for the
//     batch, its entries take precedence field by field over the indexer
//     ones, the indexer filling only the fields the marketplace left empty,
//  3. a marketplace batch that came back empty leaves the indexer set
//     untouched.
//
// The marketplace precedence is decided for the whole batch, not per key.
// Keys only the indexer reported are always included. Duplicates within one
// batch keep their first occurrence.
func mergeSources(customs, indexed, market []assets.Collectible) []assets.Collectible {
	taken := make(map[string]bool, len(customs))
	out := make([]assets.Collectible, 0, len(customs)+len(indexed)+len(market))
	for _, c := range customs {
		if taken[c.Key()] {
			continue
		}
		taken[c.Key()] = true
		out = append(out, c)
	}

	if len(market) > 0 {
		indexedByKey := make(map[string]assets.Collectible, len(indexed))
		for _, c := range indexed {
			if _, ok := indexedByKey[c.Key()]; !ok {
				indexedByKey[c.Key()] = c
			}
		}
		for _, c := range market {
			if taken[c.Key()] {
				continue
			}
			taken[c.Key()] = true
			if a, ok := indexedByKey[c.Key()]; ok {
				c = mergeFields(c, a)
			}
			out = append(out, c)
		}
	}

	for _, c := range indexed {
		if taken[c.Key()] {
			continue
		}
		taken[c.Key()] = true
		out = append(out, c)
	}

	return out
}

// mergeFields overlays primary on fallback: primary's non-empty fields win,
// fallback only fills what primary left empty. The provenance label records
// both contributors.
func mergeFields(primary, fallback assets.Collectible) assets.Collectible {
	out := primary
	if out.Name == "" {
		out.Name = fallback.Name
	}
	if out.Image == "" {
		out.Image = fallback.Image
	}
	if out.Description == "" {
		out.Description = fallback.Description
	}
	if out.Standard == "" {
		out.Standard = fallback.Standard
	}
	if out.Balance == nil {
		out.Balance = fallback.Balance
	}
	if fallback.Source != "" && fallback.Source != out.Source {
		out.Source += "," + fallback.Source
	}

	return out
}

// mergeContracts folds the contract batches by checksummed address. Unlike
// collectibles the precedence is per address: custom entries over
// marketplace ones over indexer ones, lower precedence batches filling the
// fields the higher ones left empty.
func mergeContracts(customs, indexed, market []assets.Contract) []assets.Contract {
	at := make(map[string]int)
	var out []assets.Contract
	fold := func(batch []assets.Contract) {
		for _, c := range batch {
			addr := assets.ChecksumAddress(c.Address)
			if i, ok := at[addr]; ok {
				out[i] = mergeContractFields(c, out[i])

				continue
			}
			at[addr] = len(out)
			c.Address = addr
			out = append(out, c)
		}
	}
	fold(indexed)
	fold(market)
	fold(customs)

	return out
}

// mergeContractFields overlays primary on fallback the same way
// mergeFields does for collectibles.
func mergeContractFields(primary, fallback assets.Contract) assets.Contract {
	out := primary
	out.Address = fallback.Address
	if out.Name == "" {
		out.Name = fallback.Name
	}
	if out.Symbol == "" {
		out.Symbol = fallback.Symbol
	}
	if out.Logo == "" {
		out.Logo = fallback.Logo
	}
	if out.Description == "" {
		out.Description = fallback.Description
	}
	if out.Standard == "" {
		out.Standard = fallback.Standard
	}

	return out
}
