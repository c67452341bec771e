// Package store defines the interface for database implementations to the
// detector and api microservices.
package store

import (
	"errors"
)

// DB defines the required methods for the user-registered collectible
// registry and for the per-scope snapshots of detected assets.
type DB interface {
	// custom collectible entries, fed into every detection cycle
	AddCustom(CustomEntry) error
	RemoveCustom(account, network, address, tokenID string) error
	GetCustoms(account, network string) ([]CustomEntry, error)
	// per-scope snapshots, written after each cycle and loadable at boot
	SaveAssets(AssetSnapshot) error
	LoadAssets(account, network string) (AssetSnapshot, error)
	DeleteAssets(account, network string) error
}

// Errors returned
var (
	ErrCustomNotFound = errors.New("custom entry was not found in store")
	ErrDataNotFound   = errors.New("data was not found in store")
)
