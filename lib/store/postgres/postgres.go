// Package postgres implements the store interface for PostgreSQL.
package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/openwalletd/nftd/lib/store"
)

// Postgres implements a connection to a PostgreSQL database.
type Postgres struct {
	db *sql.DB
}

// schema is applied at connection time, so a fresh database works without a
// separate migration step.
const schema = `
CREATE TABLE IF NOT EXISTS customs (
	network     TEXT NOT NULL,
	account     TEXT NOT NULL,
	address     TEXT NOT NULL,
	tokenid     TEXT NOT NULL,
	standard    TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	image       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (network, account, address, tokenid)
);
CREATE TABLE IF NOT EXISTS snapshots (
	network TEXT NOT NULL,
	account TEXT NOT NULL,
	data    JSONB NOT NULL,
	updated TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (network, account)
);`

// New returns a postgres client connection to the specified database in
// 'connection' with the schema applied.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("cannot reach DB in %s: %w", connection, err)
	}
	if _, err = db.Exec(schema); err != nil {
		return nil, fmt.Errorf("cannot apply schema: %w", err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// AddCustom saves a custom entry, updating its fields if it was already
// registered.
func (p *Postgres) AddCustom(e store.CustomEntry) error {
	_, err := p.db.Exec(`
		INSERT INTO customs (network, account, address, tokenid, standard, name, image, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (network, account, address, tokenid)
		DO UPDATE SET standard = $5, name = $6, image = $7, description = $8`,
		e.Network, strings.ToLower(e.Account), strings.ToLower(e.Address), e.TokenID,
		e.Standard, e.Name, e.Image, e.Description)
	if err != nil {
		return fmt.Errorf("could not insert custom entry in db: %w", err)
	}

	return nil
}

// RemoveCustom deletes a custom entry from the database.
func (p *Postgres) RemoveCustom(account, network, address, tokenID string) error {
	res, err := p.db.Exec(`
		DELETE FROM customs WHERE network = $1 AND account = $2 AND address = $3 AND tokenid = $4`,
		network, strings.ToLower(account), strings.ToLower(address), tokenID)
	if err != nil {
		return fmt.Errorf("could not delete custom entry from db: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return store.ErrCustomNotFound
	}

	return nil
}

// GetCustoms returns the custom entries registered for the account on the
// network. An empty account returns the whole network's entries.
func (p *Postgres) GetCustoms(account, network string) ([]store.CustomEntry, error) {
	rows, err := p.db.Query(`
		SELECT account, address, tokenid, standard, name, image, description
		FROM customs WHERE network = $1 AND ($2 = '' OR account = $2)
		ORDER BY address, tokenid`,
		network, strings.ToLower(account))
	if err != nil {
		return nil, fmt.Errorf("error getting custom entries: %w", err)
	}
	defer rows.Close()

	entries := []store.CustomEntry{}
	for rows.Next() {
		e := store.CustomEntry{Network: network}
		if err = rows.Scan(&e.Account, &e.Address, &e.TokenID, &e.Standard,
			&e.Name, &e.Image, &e.Description); err != nil {
			return nil, fmt.Errorf("error scanning custom entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SaveAssets saves to db the asset snapshot for its scope.
func (p *Postgres) SaveAssets(s store.AssetSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("could not encode snapshot: %w", err)
	}
	_, err = p.db.Exec(`
		INSERT INTO snapshots (network, account, data, updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network, account) DO UPDATE SET data = $3, updated = $4`,
		s.Network, strings.ToLower(s.Account), data, s.Updated)
	if err != nil {
		return fmt.Errorf("could not save snapshot in db: %w", err)
	}

	return nil
}

// LoadAssets loads from db the asset snapshot for the scope.
func (p *Postgres) LoadAssets(account, network string) (store.AssetSnapshot, error) {
	var s store.AssetSnapshot
	var data []byte

	err := p.db.QueryRow(`
		SELECT data FROM snapshots WHERE network = $1 AND account = $2`,
		network, strings.ToLower(account)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return s, store.ErrDataNotFound
	}
	if err != nil {
		return s, fmt.Errorf("error loading snapshot: %w", err)
	}
	if err = json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("error decoding snapshot: %w", err)
	}

	return s, nil
}

// DeleteAssets deletes from db the asset snapshot for the scope.
func (p *Postgres) DeleteAssets(account, network string) error {
	_, err := p.db.Exec(`DELETE FROM snapshots WHERE network = $1 AND account = $2`,
		network, strings.ToLower(account))

	return err
}
