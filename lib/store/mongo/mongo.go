// Package mongo implements the store interface for MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openwalletd/nftd/lib/store"
)

// Database names: custom entries and asset snapshots, one collection per
// network in each.
const (
	dbCustom = "custom"
	dbAssets = "assets"
)

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

// customFilter identifies one custom entry within a network collection.
func customFilter(account, address, tokenID string) bson.M {
	return bson.M{
		"account": strings.ToLower(account),
		"address": strings.ToLower(address),
		"tokenid": tokenID,
	}
}

// AddCustom saves a custom entry, updating its fields if it was already
// registered.
func (m *Mongo) AddCustom(e store.CustomEntry) error {
	col := m.c.Database(dbCustom).Collection(e.Network)

	filter := customFilter(e.Account, e.Address, e.TokenID)
	sr := col.FindOne(context.Background(), filter)

	err := sr.Err()
	if errors.Is(err, mgo.ErrNoDocuments) { // if not found, do insert it!!
		_, errIns := col.InsertOne(context.Background(), bson.M{
			"account":     strings.ToLower(e.Account),
			"address":     strings.ToLower(e.Address),
			"tokenid":     e.TokenID,
			"standard":    e.Standard,
			"name":        e.Name,
			"image":       e.Image,
			"description": e.Description,
		})
		if errIns != nil {
			return fmt.Errorf("could not insert custom entry in db: %w", errIns)
		}

		return nil
	}

	if err != nil {
		return fmt.Errorf("could not insert custom entry in db: %w", err)
	}

	log.Printf("[%s] custom entry already registered, updating:%+v\n", e.Network, e)

	_, err = col.UpdateOne(context.Background(), filter, bson.M{"$set": bson.M{
		"standard":    e.Standard,
		"name":        e.Name,
		"image":       e.Image,
		"description": e.Description,
	}})
	if err != nil {
		return fmt.Errorf("could not update custom entry in db: %w", err)
	}

	return nil
}

// RemoveCustom deletes a custom entry from the database.
func (m *Mongo) RemoveCustom(account, network, address, tokenID string) error {
	col := m.c.Database(dbCustom).Collection(network)

	res, err := col.DeleteOne(context.Background(), customFilter(account, address, tokenID))
	if err == nil && res.DeletedCount != 1 {
		err = store.ErrCustomNotFound
	}

	return err
}

// GetCustoms returns the custom entries registered for the account on the
// network. An empty account returns the whole network collection.
func (m *Mongo) GetCustoms(account, network string) ([]store.CustomEntry, error) {
	filter := bson.M{}
	if account != "" {
		filter["account"] = strings.ToLower(account)
	}

	docs, err := m.c.Database(dbCustom).Collection(network).Find(context.TODO(), filter)
	if err != nil {
		return nil, fmt.Errorf("error getting custom entries: %w", err)
	}

	entries := []store.CustomEntry{}

	for docs.Next(context.Background()) {
		var e store.CustomEntry
		if err = bson.Unmarshal(docs.Current, &e); err == nil {
			e.Network = network
			entries = append(entries, e)
		}
	}

	return entries, nil
}

// LoadAssets loads from db the asset snapshot for the scope.
func (m *Mongo) LoadAssets(account, network string) (s store.AssetSnapshot, err error) {
	sr := m.c.Database(dbAssets).Collection(network).FindOne(context.TODO(),
		bson.M{"account": strings.ToLower(account)})
	if err = sr.Decode(&s); errors.Is(err, mgo.ErrNoDocuments) {
		err = store.ErrDataNotFound
	}

	return
}

// SaveAssets saves to db the asset snapshot for its scope.
func (m *Mongo) SaveAssets(s store.AssetSnapshot) (err error) {
	_, err = m.c.Database(dbAssets).Collection(s.Network).UpdateOne(context.Background(),
		bson.M{"account": strings.ToLower(s.Account)}, // filter
		bson.D{ // update
			{
				Key: "$set", Value: bson.D{
					{Key: "account", Value: strings.ToLower(s.Account)},
					{Key: "network", Value: s.Network},
					{Key: "collectibles", Value: s.Collectibles},
					{Key: "contracts", Value: s.Contracts},
					{Key: "tokens", Value: s.Tokens},
					{Key: "updated", Value: s.Updated},
				},
			},
		},
		options.Update().SetUpsert(true))

	return
}

// DeleteAssets deletes from db the asset snapshot for the scope.
func (m *Mongo) DeleteAssets(account, network string) (err error) {
	_, err = m.c.Database(dbAssets).Collection(network).DeleteOne(context.Background(),
		bson.M{"account": strings.ToLower(account)}, options.Delete())

	return
}
