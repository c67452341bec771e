// Package badger implements the store interface on an embedded Badger
// database, so the service can run without an external database server.
package badger

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/openwalletd/nftd/lib/store"
)

// Key prefixes.
const (
	prefixCustom = "CUSTOMS:"
	prefixAssets = "ASSETS:"
)

// Badger implements the store interface on a local Badger database.
type Badger struct {
	db   *badger.DB
	stop chan struct{}
}

// New opens (or creates) the Badger database at path and starts the value
// log garbage collector.
func New(path string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(path))
	if err != nil {
		return nil, fmt.Errorf("cannot open badger db in %s: %w", path, err)
	}

	b := &Badger{db: db, stop: make(chan struct{})}

	go func() {
		for {
			select {
			case <-b.stop:
				return
			case <-time.After(5 * time.Minute):
			}
			lsm, vlog := db.Size()
			if lsm > 1024*1024*8 || vlog > 1024*1024*32 {
				err := db.RunValueLogGC(0.5)
				log.Printf("badger RunValueLogGC %v", err)
			}
		}
	}()

	return b, nil
}

// CloseBadger will close the database. Must be called at termination time.
func (b *Badger) CloseBadger() error {
	close(b.stop)

	return b.db.Close()
}

func customKey(network, account, address, tokenID string) []byte {
	return []byte(prefixCustom + network + ":" + strings.ToLower(account) + ":" +
		strings.ToLower(address) + "_" + tokenID)
}

func assetsKey(network, account string) []byte {
	return []byte(prefixAssets + network + ":" + strings.ToLower(account))
}

// AddCustom saves a custom entry, overwriting its fields if it was already
// registered.
func (b *Badger) AddCustom(e store.CustomEntry) error {
	e.Account = strings.ToLower(e.Account)
	e.Address = strings.ToLower(e.Address)
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("could not encode custom entry: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(customKey(e.Network, e.Account, e.Address, e.TokenID), val)
	})
}

// RemoveCustom deletes a custom entry from the database.
func (b *Badger) RemoveCustom(account, network, address, tokenID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		key := customKey(network, account, address, tokenID)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return store.ErrCustomNotFound
		} else if err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

// GetCustoms returns the custom entries registered for the account on the
// network. An empty account returns the whole network's entries.
func (b *Badger) GetCustoms(account, network string) ([]store.CustomEntry, error) {
	prefix := prefixCustom + network + ":"
	if account != "" {
		prefix += strings.ToLower(account) + ":"
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	entries := []store.CustomEntry{}
	for it.Seek(opts.Prefix); it.Valid(); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		var e store.CustomEntry
		if err := json.Unmarshal(val, &e); err != nil {
			return nil, fmt.Errorf("could not decode custom entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// SaveAssets saves the asset snapshot for its scope.
func (b *Badger) SaveAssets(s store.AssetSnapshot) error {
	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("could not encode snapshot: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(assetsKey(s.Network, s.Account), val)
	})
}

// LoadAssets loads the asset snapshot for the scope.
func (b *Badger) LoadAssets(account, network string) (store.AssetSnapshot, error) {
	var s store.AssetSnapshot

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(assetsKey(network, account))
	if err == badger.ErrKeyNotFound {
		return s, store.ErrDataNotFound
	} else if err != nil {
		return s, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(val, &s); err != nil {
		return s, fmt.Errorf("could not decode snapshot: %w", err)
	}

	return s, nil
}

// DeleteAssets deletes the asset snapshot for the scope.
func (b *Badger) DeleteAssets(account, network string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(assetsKey(network, account))
	})
}
