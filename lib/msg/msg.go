// Package msg defines the interface for different message brokers.
//
package msg

import (
	"sync"

	"github.com/openwalletd/nftd/lib/msg/types"
)

type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	// the detector publishes asset events after each store mutation
	SendAssetEvents(net string, evs []types.AssetEvent) error

	// consumers (ie the watch command) receive asset events
	GetAssetEvents(net string, mut *sync.Mutex) (<-chan types.AssetEvent, <-chan error, error)
}
