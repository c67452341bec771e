// Package source defines the adapters that report which collectibles an
// account holds in a network. Three adapters feed the detector: the custom
// registry of user supplied entries, a contract indexer API and a
// marketplace API. Implementations degrade gracefully on networks they do
// not serve by returning empty results.
package source

import (
	"context"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/chain"
	"github.com/openwalletd/nftd/lib/config"
	"github.com/openwalletd/nftd/lib/source/custom"
	"github.com/openwalletd/nftd/lib/source/indexer"
	"github.com/openwalletd/nftd/lib/source/market"
	"github.com/openwalletd/nftd/lib/store"
)

// Source is the interface to a service that reports the collectibles an
// account holds in a network.
type Source interface {
	// Name labels the source in logs and selects its merge precedence.
	Name() string
	// Networks lists the network names the source can serve.
	Networks() []string
	// Fetch returns the collectibles and their contracts the source reports
	// for the account in the network. A network the source does not serve
	// yields empty results, not an error.
	Fetch(ctx context.Context, account, network string) ([]assets.Collectible, []assets.Contract, error)
}

// Init sets up the three detection sources from the service configuration.
// The custom registry resolves ownership through the given chain lookups,
// the indexer and marketplace adapters talk to their configured endpoints.
func Init(sc config.SourceConfig, db store.DB, chains map[string]chain.Lookup) []Source {
	return []Source{
		custom.New(db, chains),
		indexer.New(sc.IndexerURL, sc.IndexerKey, nil),
		market.New(sc.MarketURL, sc.MarketKey, nil),
	}
}
