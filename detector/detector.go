// Package detector implements the collectible detection service. The
// detector polls the configured sources for the active account's NFTs,
// merges their reports into a single per scope view and keeps the persisted
// snapshot and the event stream up to date.
package detector

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/chain"
	"github.com/openwalletd/nftd/lib/config"
	"github.com/openwalletd/nftd/lib/metadata"
	"github.com/openwalletd/nftd/lib/msg"
	mtypes "github.com/openwalletd/nftd/lib/msg/types"
	"github.com/openwalletd/nftd/lib/normalize"
	"github.com/openwalletd/nftd/lib/source"
	"github.com/openwalletd/nftd/lib/store"
	"github.com/openwalletd/nftd/lib/util"
)

// Detector implements the detection service.
type Detector struct {
	db            store.DB
	mb            msg.MsgBroker
	chains        map[string]chain.Lookup
	norm          map[string]*normalize.Normalizer
	srcs          []source.Source
	as            *assets.Store
	nets          []string // networks at least one source serves
	detectFromAPI bool

	mu        sync.Mutex // guards the scheduler state below
	interval  time.Duration
	detecting bool
	timer     *time.Timer

	runMu sync.Mutex // serializes detection cycles
}

// New instantiates a new detector service.
func New(db store.DB, mb msg.MsgBroker, chains map[string]chain.Lookup, srcs []source.Source, dc config.DetectorConfig) *Detector {
	norm := make(map[string]*normalize.Normalizer, len(chains))
	meta := metadata.New()
	for net, lookup := range chains {
		norm[net] = normalize.New(lookup, meta)
	}

	set := make(map[string]bool)
	for _, s := range srcs {
		for _, n := range s.Networks() {
			set[n] = true
		}
	}

	ms := dc.IntervalMs
	if ms <= 0 {
		ms = config.IntervalDefault
	}

	return &Detector{
		db:            db,
		mb:            mb,
		chains:        chains,
		norm:          norm,
		srcs:          srcs,
		as:            assets.NewStore(),
		nets:          util.SortedKeys(set),
		detectFromAPI: dc.DetectFromAPI,
		interval:      time.Duration(ms) * time.Millisecond,
	}
}

// Assets exposes the in-memory asset store, used by the REST API for views
// and by in-process subscribers.
func (d *Detector) Assets() *assets.Store {
	return d.as
}

// Networks returns the networks at least one collectible source can serve.
func (d *Detector) Networks() []string {
	return d.nets
}

// StartDetection selects the account, runs one cycle right away and arms
// the repeating timer. An empty account keeps the one already selected.
func (d *Detector) StartDetection(account string) {
	if account != "" {
		_, net := d.as.ActiveScope()
		d.SetScope(account, net)
	}

	d.mu.Lock()
	d.detecting = true
	d.arm()
	d.mu.Unlock()

	go d.Detect()
}

// StopDetection cancels the timer and clears the active account. An
// in-flight cycle is not aborted and its result still lands in the scope it
// captured at entry.
func (d *Detector) StopDetection() {
	d.mu.Lock()
	d.detecting = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	_, net := d.as.ActiveScope()
	d.as.SetActiveScope("", net)
}

// Detecting reports whether the repeating timer is armed.
func (d *Detector) Detecting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.detecting
}

// Interval returns the pause between detection cycles.
func (d *Detector) Interval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.interval
}

// SetInterval changes the pause between cycles. The running timer, if any,
// is cancelled and re-armed so at most one timer is ever live.
func (d *Detector) SetInterval(ms int) {
	if ms <= 0 {
		ms = config.IntervalDefault
	}

	d.mu.Lock()
	d.interval = time.Duration(ms) * time.Millisecond
	if d.detecting {
		d.arm()
	}
	d.mu.Unlock()
}

// arm schedules the next tick, cancelling any previous timer. Callers hold
// d.mu.
func (d *Detector) arm() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.tick)
}

func (d *Detector) tick() {
	d.mu.Lock()
	if !d.detecting {
		d.mu.Unlock()

		return
	}
	d.arm()
	d.mu.Unlock()

	d.Detect()
}

// SetScope selects the active (account, network) pair for the views and for
// the next cycles. A scope with no in-memory data yet is primed from its
// persisted snapshot when one exists.
func (d *Detector) SetScope(account, network string) {
	d.as.SetActiveScope(account, network)
	if account == "" || network == "" {
		return
	}
	if len(d.as.Collectibles(account, network)) == 0 {
		d.Restore(account, network)
	}
}

// Restore loads the persisted snapshot for the scope into the store, so the
// view survives restarts until the next cycle refreshes it.
func (d *Detector) Restore(account, network string) {
	snap, err := d.db.LoadAssets(account, network)
	if err != nil {
		if !errors.Is(err, store.ErrDataNotFound) {
			log.Printf("[%s] Cannot load assets snapshot from DB, err:%e", network, err)
		}

		return
	}
	d.as.ReplaceCollectibles(account, network, snap.Collectibles)
	d.as.UpsertContracts(account, network, snap.Contracts)
	d.as.UpsertTokens(account, network, snap.Tokens)
	log.Printf("[%s] Restored %d collectibles, %d contracts and %d tokens for %s",
		network, len(snap.Collectibles), len(snap.Contracts), len(snap.Tokens), account)
}

// Detect runs one detection cycle against the scope active at entry. Cycles
// are serialized: a tick firing while one is still running waits its turn.
// The cycle fans the source fetches out concurrently, waits for all of them
// and merges whatever succeeded, so one failing source never blocks the
// others' results.
func (d *Detector) Detect() {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	account, network := d.as.ActiveScope()
	if account == "" {
		return
	}
	if !util.In(d.nets, network) {
		log.Printf("[%s] no collectible source serves the network, skipping detection", network)

		return
	}

	ctx := context.Background()
	cols := make(map[string][]assets.Collectible, len(d.srcs))
	cons := make(map[string][]assets.Contract, len(d.srcs))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, src := range d.srcs {
		wg.Add(1)
		go func(src source.Source) {
			defer wg.Done()
			c, k, err := src.Fetch(ctx, account, network)
			if err != nil {
				log.Printf("[%s] source %s failed, detecting without it, err:%e", network, src.Name(), err)

				return
			}
			mu.Lock()
			cols[src.Name()] = c
			cons[src.Name()] = k
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	merged := mergeSources(cols[assets.SourceCustom], cols[assets.SourceIndexer], cols[assets.SourceMarket])
	merged = d.normalizeBatch(ctx, merged, account, network)
	contracts := mergeContracts(cons[assets.SourceCustom], cons[assets.SourceIndexer], cons[assets.SourceMarket])

	d.as.ReplaceCollectibles(account, network, merged)
	d.as.UpsertContracts(account, network, contracts)
	log.Printf("[%s] Detected %d collectibles and %d contracts for %s", network, len(merged), len(contracts), account)

	d.persist(account, network)
	d.publish(account, network)
}

// normalizeBatch fills the fields the sources left empty and resolves the
// still unknown balances. A failing item is excluded, the batch proceeds.
func (d *Detector) normalizeBatch(ctx context.Context, items []assets.Collectible, account, network string) []assets.Collectible {
	norm := d.norm[network]
	if norm == nil {
		return items
	}

	out := items[:0]
	for _, c := range items {
		c, err := norm.Collectible(ctx, c, account, d.detectFromAPI)
		if err != nil {
			log.Printf("[%s] dropping %s from the merge, err:%e", network, c.Key(), err)

			continue
		}
		out = append(out, c)
	}

	return out
}

// AddCollectibles registers the items as custom entries and folds them into
// the scope without waiting for the next cycle. Items are verified and
// completed one by one, a failing item is skipped and never aborts the
// batch. Contract lookups are deduplicated within the call. The accepted
// items are returned.
func (d *Detector) AddCollectibles(ctx context.Context, account, network string, items []assets.Collectible, detectFromAPI bool) []assets.Collectible {
	norm := d.norm[network]
	var cols []assets.Collectible
	var cons []assets.Contract
	seen := make(map[string]bool)
	for _, c := range items {
		if !assets.ValidAddress(c.Address) || c.TokenID == "" {
			log.Printf("[%s] invalid collectible %q %q, skipping", network, c.Address, c.TokenID)

			continue
		}
		if norm != nil {
			nc, err := norm.Collectible(ctx, c, account, detectFromAPI)
			if err != nil {
				log.Printf("[%s] collectible %s not added, err:%e", network, c.Key(), err)

				continue
			}
			c = nc
		}
		c.Source = assets.SourceCustom
		cols = append(cols, c)

		if err := d.db.AddCustom(store.CustomEntry{
			Account:     account,
			Network:     network,
			Address:     c.Address,
			TokenID:     c.TokenID,
			Standard:    c.Standard,
			Name:        c.Name,
			Image:       c.Image,
			Description: c.Description,
		}); err != nil {
			log.Printf("[%s] Cannot register custom entry %s, err:%e", network, c.Key(), err)
		}

		addr := assets.ChecksumAddress(c.Address)
		if seen[addr] || norm == nil {
			continue
		}
		seen[addr] = true
		con, err := norm.Contract(ctx, assets.Contract{Address: c.Address, Standard: c.Standard})
		if err != nil {
			log.Printf("[%s] contract %s not added, err:%e", network, addr, err)

			continue
		}
		cons = append(cons, con)
	}

	d.as.UpsertCollectibles(account, network, cols)
	d.as.UpsertContracts(account, network, cons)
	d.persist(account, network)
	d.publish(account, network)

	return cols
}

// RemoveCollectible unregisters the custom entry and drops the collectible
// from the scope. Removing an entry that was never registered returns
// store.ErrCustomNotFound.
func (d *Detector) RemoveCollectible(account, network, address, tokenID string) error {
	if err := d.db.RemoveCustom(account, network, address, tokenID); err != nil {
		return err
	}
	d.as.RemoveCollectible(account, network, address, tokenID)
	d.persist(account, network)
	d.publish(account, network)

	return nil
}

// AddTokens registers fungible tokens for the scope, completing missing
// metadata on chain. The accepted items are returned.
func (d *Detector) AddTokens(ctx context.Context, account, network string, items []assets.Token) []assets.Token {
	lookup := d.chains[network]
	var toks []assets.Token
	for _, tk := range items {
		if !assets.ValidAddress(tk.Address) {
			log.Printf("[%s] invalid token address %q, skipping", network, tk.Address)

			continue
		}
		if lookup != nil && (tk.Name == "" || tk.Symbol == "" || tk.Decimals == 0) {
			meta, err := lookup.Token(ctx, tk.Address)
			if err != nil {
				log.Printf("[%s] token metadata for %s unresolved, keeping the given fields, err:%e", network, tk.Address, err)
			} else {
				if tk.Name == "" {
					tk.Name = meta.Name
				}
				if tk.Symbol == "" {
					tk.Symbol = meta.Symbol
				}
				if tk.Decimals == 0 {
					tk.Decimals = meta.Decimals
				}
			}
		}
		tk.Address = assets.ChecksumAddress(tk.Address)
		toks = append(toks, tk)
	}

	d.as.UpsertTokens(account, network, toks)
	d.persist(account, network)
	d.publish(account, network)

	return toks
}

// persist writes the scope's snapshot to the DB.
func (d *Detector) persist(account, network string) {
	snap := store.AssetSnapshot{
		Account:      account,
		Network:      network,
		Collectibles: d.as.Collectibles(account, network),
		Contracts:    d.as.Contracts(account, network),
		Tokens:       d.as.Tokens(account, network),
		Updated:      time.Now().UTC(),
	}
	if err := d.db.SaveAssets(snap); err != nil {
		log.Printf("[%s] Error saving assets snapshot to DB, err:%e", network, err)
	}
}

// publish sends the scope's updated counters to the broker.
func (d *Detector) publish(account, network string) {
	if d.mb == nil {
		return
	}
	ev := mtypes.AssetEvent{
		Account:      account,
		Network:      network,
		Collectibles: len(d.as.Collectibles(account, network)),
		Contracts:    len(d.as.Contracts(account, network)),
		Tokens:       len(d.as.Tokens(account, network)),
		At:           time.Now().UTC(),
	}
	if err := d.mb.SendAssetEvents(network, []mtypes.AssetEvent{ev}); err != nil {
		log.Printf("[%s] Error sending asset event for %s, err:%e", network, account, err)
	}
}
