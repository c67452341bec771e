package store

import (
	"strings"
	"time"

	"github.com/openwalletd/nftd/lib/assets"
)

// CustomEntry contains the fields for a user-registered collectible saved to
// DB. The custom source feeds these into every detection cycle of the
// matching scope.
type CustomEntry struct {
	Account     string          `json:"account" bson:"account"`
	Network     string          `json:"network" bson:"network"`
	Address     string          `json:"address" bson:"address"`
	TokenID     string          `json:"tokenId" bson:"tokenid"`
	Standard    assets.Standard `json:"standard" bson:"standard"`
	Name        string          `json:"name,omitempty" bson:"name"`
	Image       string          `json:"image,omitempty" bson:"image"`
	Description string          `json:"description,omitempty" bson:"description"`
}

// Key returns the collectible index key of the entry.
func (e CustomEntry) Key() string {
	return strings.ToLower(e.Address) + "_" + e.TokenID
}

// AssetSnapshot contains the fields for a scope's detected assets saved to
// DB. Collectible balances are not persisted, they are unknown after a
// reload until the next cycle resolves them.
type AssetSnapshot struct {
	Account      string               `json:"account" bson:"account"`
	Network      string               `json:"network" bson:"network"`
	Collectibles []assets.Collectible `json:"collectibles" bson:"collectibles"`
	Contracts    []assets.Contract    `json:"contracts" bson:"contracts"`
	Tokens       []assets.Token       `json:"tokens" bson:"tokens"`
	Updated      time.Time            `json:"updated" bson:"updated"`
}
