// package api implements the RESTful API microservice of the collectible
// detector.
//
// Clients use it to inspect the detected assets, register their own
// collectibles and fungible tokens and drive the detection scheduler. All
// responses use the Response envelope with the payload JSON-encoded in Body.
package api

import (
	"context"
	"log"
	"net/http"

	"github.com/openwalletd/nftd/detector"
	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/chain"
	"github.com/openwalletd/nftd/lib/msg"
	"github.com/openwalletd/nftd/lib/store"
	"github.com/openwalletd/nftd/lib/store/db"
)

// API contains the data necessary to deliver the service
type API struct {
	dbtype string
	db     store.DB                // db connection
	chains map[string]chain.Lookup // chain clients
	det    *detector.Detector      // detection service
	mb     msg.MsgBroker
	s      *http.Server  // http server
	ss     *http.Server  // https server
	sc     chan struct{} // http server channel used for graceful shutdowns
}

// New returns a pointer to a new API service
func New(dbtype string, dbConn store.DB, mb msg.MsgBroker, chains map[string]chain.Lookup, det *detector.Detector) *API {
	return &API{
		dbtype: dbtype,
		db:     dbConn,
		mb:     mb,
		chains: chains,
		det:    det,
	}
}

// StopAPI shuts down the http servers implementing the RESTful API and closes gracefully the connections to message broker and database.
func (a *API) StopAPI() {
	var err error
	// stop the detection scheduler first so no cycle writes during teardown
	a.det.StopDetection()
	// shutdown http server
	if a.s != nil {
		if err = a.s.Shutdown(context.Background()); err != nil {
			log.Printf("Error in http server shutdown:%e", err)
		}
	}
	if a.ss != nil {
		if err = a.ss.Shutdown(context.Background()); err != nil {
			log.Printf("Error in https server shutdown:%e", err)
		}
	}
	close(a.sc) // close server channels to indicate shutdowns have finished
	// close message broker
	if a.mb != nil {
		if err = a.mb.Close(); err != nil {
			log.Printf("Error closing message broker:%e", err)
		}
	}
	// close database
	if a.db != nil {
		err = db.Close(a.dbtype, a.db)
		log.Printf("Disconnecting %v database, err:%e\n", a.dbtype, err)
	}
}

// WatchAssets subscribes to the in-memory store and logs every state
// mutation, an operator trace of the detection activity. The returned
// function unsubscribes.
func (a *API) WatchAssets() func() {
	return a.det.Assets().Subscribe(func(st assets.State) {
		log.Printf("assets updated: %d collectibles, %d contracts, %d tokens in the active scope",
			len(st.Collectibles), len(st.Contracts), len(st.Tokens))
	})
}
