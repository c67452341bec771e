package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/store"
	"github.com/openwalletd/nftd/lib/util"
)

// CollectiblesReq is the payload to register custom collectibles. Account
// and Net default to the active scope when empty.
type CollectiblesReq struct {
	Account       string               `json:"account,omitempty"`
	Net           string               `json:"net,omitempty"`
	DetectFromAPI bool                 `json:"detectFromApi"`
	Items         []assets.Collectible `json:"items"`
}

// TokensReq is the payload to register fungible tokens. Account and Net
// default to the active scope when empty.
type TokensReq struct {
	Account string         `json:"account,omitempty"`
	Net     string         `json:"net,omitempty"`
	Items   []assets.Token `json:"items"`
}

// DetectionReq selects the account detection cycles run for.
type DetectionReq struct {
	Account string `json:"account"`
}

// ScopeReq selects the active (account, network) scope.
type ScopeReq struct {
	Account string `json:"account"`
	Network string `json:"network"`
}

// DetectionStatus reports the scheduler state to clients.
type DetectionStatus struct {
	Detecting  bool   `json:"detecting"`
	Account    string `json:"account"`
	Network    string `json:"network"`
	IntervalMs int64  `json:"intervalMs"`
}

// Errors returned to client requests.
var (
	ErrBadRequest = errors.New("bad request")
	ErrMissingNet = errors.New("undefined network - missing query: ?net=<network>")
	ErrNoAccount  = errors.New("no account given and none selected")
	ErrNoAddr     = errors.New("undefined address - missing in uri")
	ErrNoNet      = errors.New("network not available")
	ErrNotFound   = errors.New("not found")
)

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// scopeOf resolves the scope a request applies to: the explicit values when
// given, the active scope otherwise.
func (a *API) scopeOf(account, net string) (string, string) {
	acc, n := a.det.Assets().ActiveScope()
	if account != "" {
		acc = account
	}
	if net != "" {
		n = net
	}

	return acc, n
}

// knownNet reports whether the network is configured or served by a source.
func (a *API) knownNet(net string) bool {
	if _, ok := a.chains[net]; ok {
		return true
	}

	return util.In(a.det.Networks(), net)
}

// homeHandler just replies a welcome message to the client.
func (a *API) homeHandler(rw http.ResponseWriter, r *http.Request) {
	var res Response
	// log request
	log.Printf("httpreq from %v %s\n", r.RemoteAddr, r.RequestURI)
	// just reply a welcome message
	res.Body = "Hello, this is your collectible detector!"
	// reply
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	_ = json.NewEncoder(rw).Encode(res)
}

// networksHandler replies the networks available to the detector, the
// configured chains plus any network a source can serve.
func (a *API) networksHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var pl []string

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(pl)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s res:%+v err:%e\n", r.RemoteAddr, r.RequestURI, pl, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	nets := make(map[string]struct{})
	for net := range a.chains {
		nets[net] = struct{}{}
	}
	for _, net := range a.det.Networks() {
		nets[net] = struct{}{}
	}
	pl = util.SortedKeys(nets)
}

// assetsHandler replies the full asset state: the per scope trees and the
// active scope projection.
func (a *API) assetsHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	st := a.det.Assets().State()

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(st)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s collectibles:%d err:%e\n", r.RemoteAddr, r.RequestURI, len(st.Collectibles), err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()
}

// collectiblesHandler replies the collectibles of the requested scope. The
// query accepts ?addr= and ?net= to read a scope other than the active one.
func (a *API) collectiblesHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var cols []assets.Collectible

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(cols)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s collectibles:%d err:%e\n", r.RemoteAddr, r.RequestURI, len(cols), err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	account, net, err := a.queryScope(r)
	if err != nil {
		return
	}
	cols = a.det.Assets().Collectibles(account, net)
}

// contractsHandler replies the collectible contracts of the requested scope.
func (a *API) contractsHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var cons []assets.Contract

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(cons)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s contracts:%d err:%e\n", r.RemoteAddr, r.RequestURI, len(cons), err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	account, net, err := a.queryScope(r)
	if err != nil {
		return
	}
	cons = a.det.Assets().Contracts(account, net)
}

// tokensHandler replies the fungible tokens of the requested scope.
func (a *API) tokensHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var toks []assets.Token

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(toks)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s tokens:%d err:%e\n", r.RemoteAddr, r.RequestURI, len(toks), err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	account, net, err := a.queryScope(r)
	if err != nil {
		return
	}
	toks = a.det.Assets().Tokens(account, net)
}

// queryScope resolves the scope of a view request from the optional addr
// and net query values, requiring an account either way.
func (a *API) queryScope(r *http.Request) (string, string, error) {
	if err := r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return "", "", ErrBadRequest
	}
	account, net := a.scopeOf(r.Form.Get("addr"), r.Form.Get("net"))
	if account == "" {
		return "", "", ErrNoAccount
	}

	return account, net, nil
}

// addCollectiblesHandler registers the collectibles in the request as
// custom entries and folds them into the scope. The accepted items are
// replied with a request accepted status.
func (a *API) addCollectiblesHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var req CollectiblesReq

	var added []assets.Collectible

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errors.Is(err, ErrNoNet) {
				rw.WriteHeader(http.StatusNotFound)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			rw.WriteHeader(http.StatusAccepted)
			tmp, _ := json.Marshal(added)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s added:%d err:%e\n", r.RemoteAddr, r.RequestURI, len(added), err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	// get request
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding collectibles request %+v\n", r.Body)

		return
	}
	if len(req.Items) == 0 {
		err = ErrBadRequest

		return
	}
	account, net := a.scopeOf(req.Account, req.Net)
	if account == "" {
		err = ErrNoAccount

		return
	}
	if !a.knownNet(net) {
		err = ErrNoNet

		return
	}
	added = a.det.AddCollectibles(r.Context(), account, net, req.Items, req.DetectFromAPI)
}

// delCollectibleHandler unregisters the custom collectible in the uri and
// drops it from the scope. The query must carry ?net= and accepts ?addr=.
func (a *API) delCollectibleHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errors.Is(err, store.ErrCustomNotFound) || errors.Is(err, ErrNoNet) {
				rw.WriteHeader(http.StatusNotFound)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			res.Body = "removed"

			rw.WriteHeader(http.StatusAccepted)
		}
		// log request
		log.Printf("httpreq from %v %s err:%e\n", r.RemoteAddr, r.RequestURI, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	v := mux.Vars(r)
	address, ok := v["address"]
	if !ok || !assets.ValidAddress(address) {
		err = ErrNoAddr

		return
	}
	address = strings.ToLower(address) // keep everything in lowercase to avoid issues
	tokenID := v["tokenId"]
	// get network
	if err = r.ParseForm(); err != nil {
		log.Print("Error parsing request URL")

		return
	}
	net, okN := r.Form["net"]
	if !okN || len(net) != 1 { // we only allow 1 net per request
		err = ErrMissingNet

		return
	}
	account, _ := a.scopeOf(r.Form.Get("addr"), "")
	if account == "" {
		err = ErrNoAccount

		return
	}
	err = a.det.RemoveCollectible(account, net[0], address, tokenID)
}

// addTokensHandler registers the fungible tokens in the request for the
// scope. The accepted items are replied with a request accepted status.
func (a *API) addTokensHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var req TokensReq

	var added []assets.Token

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errors.Is(err, ErrNoNet) {
				rw.WriteHeader(http.StatusNotFound)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			rw.WriteHeader(http.StatusAccepted)
			tmp, _ := json.Marshal(added)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s added:%d err:%e\n", r.RemoteAddr, r.RequestURI, len(added), err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	// get request
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding tokens request %+v\n", r.Body)

		return
	}
	if len(req.Items) == 0 {
		err = ErrBadRequest

		return
	}
	account, net := a.scopeOf(req.Account, req.Net)
	if account == "" {
		err = ErrNoAccount

		return
	}
	if !a.knownNet(net) {
		err = ErrNoNet

		return
	}
	added = a.det.AddTokens(r.Context(), account, net, req.Items)
}

// detectionHandler replies the scheduler status.
func (a *API) detectionHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	account, net := a.det.Assets().ActiveScope()
	st := DetectionStatus{
		Detecting:  a.det.Detecting(),
		Account:    account,
		Network:    net,
		IntervalMs: a.det.Interval().Milliseconds(),
	}

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			rw.WriteHeader(http.StatusOK)
			tmp, _ := json.Marshal(st)
			res.Body = string(tmp)
		}
		// log request
		log.Printf("httpreq from %v %s status:%+v err:%e\n", r.RemoteAddr, r.RequestURI, st, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()
}

// startHandler selects the account in the request and starts the detection
// scheduler. An empty account keeps the one already selected; having
// neither is an error.
func (a *API) startHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var req DetectionReq

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			rw.WriteHeader(http.StatusBadRequest)
		} else {
			res.Body = "detection started"

			rw.WriteHeader(http.StatusAccepted)
		}
		// log request
		log.Printf("httpreq from %v %s account:%s err:%e\n", r.RemoteAddr, r.RequestURI, req.Account, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	// get request, an empty body is allowed
	if decErr := json.NewDecoder(r.Body).Decode(&req); decErr != nil && !errors.Is(decErr, io.EOF) {
		err = ErrBadRequest

		return
	}
	account, _ := a.scopeOf(req.Account, "")
	if account == "" {
		err = ErrNoAccount

		return
	}
	if req.Account != "" && !assets.ValidAddress(req.Account) {
		err = ErrBadRequest

		return
	}
	a.det.StartDetection(req.Account)
}

// stopHandler stops the detection scheduler.
func (a *API) stopHandler(rw http.ResponseWriter, r *http.Request) {
	var res Response
	// log request
	log.Printf("httpreq from %v %s\n", r.RemoteAddr, r.RequestURI)

	a.det.StopDetection()

	res.Body = "detection stopped"
	rw.WriteHeader(http.StatusAccepted)
	// reply
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	_ = json.NewEncoder(rw).Encode(&res)
}

// scopeHandler switches the active (account, network) scope.
func (a *API) scopeHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var res Response

	var req ScopeReq

	defer func() {
		// reply to requester accordingly
		if err != nil {
			res.Error = fmt.Sprintf("%s", err)

			if errors.Is(err, ErrNoNet) {
				rw.WriteHeader(http.StatusNotFound)
			} else {
				rw.WriteHeader(http.StatusBadRequest)
			}
		} else {
			res.Body = "scope set"

			rw.WriteHeader(http.StatusOK)
		}
		// log request
		log.Printf("httpreq from %v %s scope:%+v err:%e\n", r.RemoteAddr, r.RequestURI, req, err)
		// reply
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		_ = json.NewEncoder(rw).Encode(&res)
	}()

	// get request
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding scope request %+v\n", r.Body)

		return
	}
	if req.Account != "" && !assets.ValidAddress(req.Account) {
		err = ErrBadRequest

		return
	}
	if req.Network != "" && !a.knownNet(req.Network) {
		err = ErrNoNet

		return
	}
	account, net := a.scopeOf(req.Account, req.Network)
	a.det.SetScope(account, net)
}
