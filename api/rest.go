package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const timeout = 15

// router builds the API route table: asset views, custom registrations and
// the detection scheduler controls.
func (a *API) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", a.homeHandler)
	r.HandleFunc("/networks", a.networksHandler).Methods("GET")
	r.HandleFunc("/assets", a.assetsHandler).Methods("GET")
	r.HandleFunc("/collectibles", a.collectiblesHandler).Methods("GET")
	r.HandleFunc("/collectibles", a.addCollectiblesHandler).Methods("POST")
	r.HandleFunc("/collectibles/{address}/{tokenId}", a.delCollectibleHandler).Methods("DELETE")
	r.HandleFunc("/contracts", a.contractsHandler).Methods("GET")
	r.HandleFunc("/tokens", a.tokensHandler).Methods("GET")
	r.HandleFunc("/tokens", a.addTokensHandler).Methods("POST")
	r.HandleFunc("/detection", a.detectionHandler).Methods("GET")
	r.HandleFunc("/detection/start", a.startHandler).Methods("POST")
	r.HandleFunc("/detection/stop", a.stopHandler).Methods("POST")
	r.HandleFunc("/scope", a.scopeHandler).Methods("PUT")

	return r
}

// Init sets up and starts the http/https server to service the RESTful API for the detector service. If sslPort,
// sslCert and sslKey are informed, it will start an https (TLS) server on the specified endpoint.
func (a *API) Init(endpoint, port, sslPort, sslCert, sslKey string) string {
	var err, errTLS error

	// API definition
	r := a.router()
	http.Handle("/", r)

	// setup shutdown channel
	a.sc = make(chan struct{})

	// start http server
	if port != "" {
		a.s = &http.Server{
			Handler: r,
			Addr:    endpoint + ":" + port,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			err = a.s.ListenAndServe()
		}()

		log.Printf("Listening to API http requests on %s:%s", endpoint, port)
	}
	// start https server
	if sslPort != "" && sslCert != "" && sslKey != "" {
		a.ss = &http.Server{
			Handler: r,
			Addr:    endpoint + ":" + sslPort,
			// Good practice: enforce timeouts for servers you create!
			WriteTimeout: timeout * time.Second,
			ReadTimeout:  timeout * time.Second,
		}

		go func() {
			errTLS = a.ss.ListenAndServeTLS(sslCert, sslKey)
		}()

		log.Printf("Listening to API https requests on %s:%s", endpoint, sslPort)
	}
	// wait for servers to be shutdown
	<-a.sc

	return fmt.Sprintf("shutdown http server:%e, https server:%e", err, errTLS)
}
