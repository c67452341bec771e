// Defines the event types exchanged through message brokers.
package types

import (
	"time"
)

// AssetEvent summarizes one mutation of a scope's detected assets. It is
// published after every detection cycle or user-triggered change so other
// services can react without polling the REST API.
type AssetEvent struct {
	Account      string    `json:"account"`
	Network      string    `json:"network"`
	Collectibles int       `json:"collectibles"`
	Contracts    int       `json:"contracts"`
	Tokens       int       `json:"tokens"`
	At           time.Time `json:"at"`
}
