// Package db implements the opening and graceful closing of database connections.
package db

import (
	"github.com/openwalletd/nftd/lib/store"
	badgerstore "github.com/openwalletd/nftd/lib/store/badger"
	"github.com/openwalletd/nftd/lib/store/mongo"
	"github.com/openwalletd/nftd/lib/store/postgres"
)

const (
	MONGODB  string = "mongodb"
	POSTGRES string = "postgresql"
	BADGER   string = "badger"
)

// New returns a new database connection according to the options (database
// type). For BADGER the connection string is the database directory.
func New(options, connection string) (store.DB, error) {
	switch options {
	case MONGODB:
		return mongo.New(connection)
	case POSTGRES:
		return postgres.New(connection)
	case BADGER:
		return badgerstore.New(connection)
	}

	return nil, nil
}

// Close gracefully closes the database connection.
func Close(options string, dh store.DB) error {
	switch options {
	case MONGODB:
		return dh.(*mongo.Mongo).CloseMongo()
	case POSTGRES:
		return dh.(*postgres.Postgres).ClosePostgres()
	case BADGER:
		return dh.(*badgerstore.Badger).CloseBadger()
	}

	return nil
}
