// api_test.go drives the REST handlers through a test server backed by a
// fake DB and a fake detection source.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/openwalletd/nftd/detector"
	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/config"
	"github.com/openwalletd/nftd/lib/source"
	"github.com/openwalletd/nftd/lib/store"
)

const (
	testAcc  = "0x357cc8A6b19719d797aD77c239E6a0627007a478"
	otherAcc = "0x000000000000000000000000000000000000dEaD"
	kitties  = "0x06012c8cf97BEaD5deAe237070F9587f8E7A266d"
	punks    = "0xb47e3cd837dDF8e4c57F05d70Ab865de6e193BBB"
	dai      = "0x6b175474e89094c44da98b954eedeac495271d0f"
)

type fakeSource struct {
	name string
	nets []string
	cols []assets.Collectible
	cons []assets.Contract
}

func (f *fakeSource) Name() string       { return f.name }
func (f *fakeSource) Networks() []string { return f.nets }

func (f *fakeSource) Fetch(ctx context.Context, account, network string) ([]assets.Collectible, []assets.Contract, error) {
	return f.cols, f.cons, nil
}

type fakeDB struct {
	mu      sync.Mutex
	customs map[string]store.CustomEntry
	saved   map[string]store.AssetSnapshot
}

func newFakeDB() *fakeDB {
	return &fakeDB{customs: make(map[string]store.CustomEntry), saved: make(map[string]store.AssetSnapshot)}
}

func dbKey(account, network, address, tokenID string) string {
	return network + ":" + strings.ToLower(account) + ":" + strings.ToLower(address) + "_" + tokenID
}

func (f *fakeDB) AddCustom(e store.CustomEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customs[dbKey(e.Account, e.Network, e.Address, e.TokenID)] = e

	return nil
}

func (f *fakeDB) RemoveCustom(account, network, address, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := dbKey(account, network, address, tokenID)
	if _, ok := f.customs[k]; !ok {
		return store.ErrCustomNotFound
	}
	delete(f.customs, k)

	return nil
}

func (f *fakeDB) GetCustoms(account, network string) ([]store.CustomEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.CustomEntry
	for _, e := range f.customs {
		if e.Network == network && strings.EqualFold(e.Account, account) {
			out = append(out, e)
		}
	}

	return out, nil
}

func (f *fakeDB) SaveAssets(snap store.AssetSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[snap.Network+":"+strings.ToLower(snap.Account)] = snap

	return nil
}

func (f *fakeDB) LoadAssets(account, network string) (store.AssetSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.saved[network+":"+strings.ToLower(account)]
	if !ok {
		return store.AssetSnapshot{}, store.ErrDataNotFound
	}

	return snap, nil
}

func (f *fakeDB) DeleteAssets(account, network string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, network+":"+strings.ToLower(account))

	return nil
}

func TestAPI(t *testing.T) {
	// set up the service behind the API: a fake DB and one detection source
	sdb := newFakeDB()
	src := &fakeSource{
		name: assets.SourceIndexer,
		nets: []string{"mainnet"},
		cols: []assets.Collectible{{Address: kitties, TokenID: "1", Name: "Kitty No 1", Standard: assets.ERC721, Balance: big.NewInt(1), Source: assets.SourceIndexer}},
		cons: []assets.Contract{{Address: kitties, Name: "CryptoKitties", Symbol: "CK", Standard: assets.ERC721}},
	}
	det := detector.New(sdb, nil, nil, []source.Source{src}, config.DetectorConfig{IntervalMs: config.IntervalDefault})
	a := New("badger", sdb, nil, nil, det)

	// serve the route table
	srv := httptest.NewServer(a.router())
	defer srv.Close()

	// define tests, they run in order and share the service state
	cases := []struct {
		name, method, uri string      // case name, http method to use and uri
		obj               interface{} // object for POST, PUT
		err               error       // error in the http request call
		status            int         // http status code
		errExp            string      // error expected
		resExp            interface{} // body result expected
	}{
		{"homePage_1", http.MethodGet, "/", nil, nil, http.StatusOK, "", "Hello, this is your collectible detector!"},
		{"networks_0", http.MethodDelete, "/networks", nil, nil, http.StatusMethodNotAllowed, "", []string{}},
		{"networks_1", http.MethodGet, "/networks", nil, nil, http.StatusOK, "", []string{"mainnet"}},
		{"cols_0", http.MethodGet, "/collectibles", nil, nil, http.StatusBadRequest, "no account given and none selected", []assets.Collectible{}},
		{"start_0", http.MethodPost, "/detection/start", DetectionReq{}, nil, http.StatusBadRequest, "no account given and none selected", ""},
		{"scope_0", http.MethodPut, "/scope", ScopeReq{Account: testAcc, Network: "ropsten"}, nil, http.StatusNotFound, "network not available", ""},
		{"scope_1", http.MethodPut, "/scope", ScopeReq{Account: testAcc, Network: "mainnet"}, nil, http.StatusOK, "", "scope set"},
		{"addCols_0", http.MethodPost, "/collectibles", CollectiblesReq{}, nil, http.StatusBadRequest, "bad request", []assets.Collectible{}},
		{"addCols_1", http.MethodPost, "/collectibles", CollectiblesReq{Net: "ropsten", Items: []assets.Collectible{{Address: punks, TokenID: "7"}}}, nil, http.StatusNotFound, "network not available", []assets.Collectible{}},
		{"addCols_2", http.MethodPost, "/collectibles", CollectiblesReq{Items: []assets.Collectible{{Address: punks, TokenID: "7", Name: "Punk 7", Standard: assets.ERC721}, {Address: "bogus", TokenID: "1"}}}, nil, http.StatusAccepted, "", []assets.Collectible{{Address: punks, TokenID: "7", Source: assets.SourceCustom}}},
		{"cols_1", http.MethodGet, "/collectibles", nil, nil, http.StatusOK, "", []assets.Collectible{{Address: punks, TokenID: "7", Source: assets.SourceCustom}}},
		{"cols_2", http.MethodGet, "/collectibles?addr=" + otherAcc + "&net=mainnet", nil, nil, http.StatusOK, "", []assets.Collectible{}},
		{"cons_1", http.MethodGet, "/contracts", nil, nil, http.StatusOK, "", 0},
		{"addToks_0", http.MethodPost, "/tokens", TokensReq{}, nil, http.StatusBadRequest, "bad request", []assets.Token{}},
		{"addToks_1", http.MethodPost, "/tokens", TokensReq{Items: []assets.Token{{Address: dai, Name: "Dai", Symbol: "DAI", Decimals: 18}, {Address: "nope"}}}, nil, http.StatusAccepted, "", []assets.Token{{Address: assets.ChecksumAddress(dai), Name: "Dai"}}},
		{"toks_1", http.MethodGet, "/tokens", nil, nil, http.StatusOK, "", []assets.Token{{Address: assets.ChecksumAddress(dai), Name: "Dai"}}},
		{"assets_1", http.MethodGet, "/assets", nil, nil, http.StatusOK, "", 1},
		{"del_0", http.MethodDelete, "/collectibles/" + punks + "/7", nil, nil, http.StatusBadRequest, "undefined network - missing query: ?net=<network>", ""},
		{"del_1", http.MethodDelete, "/collectibles/" + punks + "/9?net=mainnet", nil, nil, http.StatusNotFound, "custom entry was not found in store", ""},
		{"del_2", http.MethodDelete, "/collectibles/" + punks + "/7?net=mainnet", nil, nil, http.StatusAccepted, "", "removed"},
		{"cols_3", http.MethodGet, "/collectibles", nil, nil, http.StatusOK, "", []assets.Collectible{}},
		{"detect_1", http.MethodGet, "/detection", nil, nil, http.StatusOK, "", DetectionStatus{Detecting: false, Account: testAcc, Network: "mainnet", IntervalMs: int64(config.IntervalDefault)}},
		{"start_1", http.MethodPost, "/detection/start", DetectionReq{Account: "xyz"}, nil, http.StatusBadRequest, "bad request", ""},
		{"start_2", http.MethodPost, "/detection/start", DetectionReq{}, nil, http.StatusAccepted, "", "detection started"},
		{"detect_2", http.MethodGet, "/detection", nil, nil, http.StatusOK, "", DetectionStatus{Detecting: true, Account: testAcc, Network: "mainnet", IntervalMs: int64(config.IntervalDefault)}},
		{"stop_1", http.MethodPost, "/detection/stop", nil, nil, http.StatusAccepted, "", "detection stopped"},
		{"detect_3", http.MethodGet, "/detection", nil, nil, http.StatusOK, "", DetectionStatus{Detecting: false, Account: "", Network: "mainnet", IntervalMs: int64(config.IntervalDefault)}},
	}

	// run tests
	for _, c := range cases {
		// make http request to API
		s, b, e, err := makeRequest(c.method, srv.URL+c.uri, c.obj)
		// check error in call, StatusCode and error response
		if err != c.err {
			t.Errorf("[%s] Error in response:%e expected:%e", c.name, err, c.err)
		} else if s != c.status {
			t.Errorf("[%s] Error in StatusCode:%d expected:%d", c.name, s, c.status)
		} else if e != c.errExp {
			t.Errorf("[%s] Error in response:%s expected:%s", c.name, e, c.errExp)
		} else if s < http.StatusBadRequest {
			// unmarshal and test body response
			switch c.name[:len(c.name)-2] {
			case "homePage", "scope", "del", "start", "stop":
				if b != c.resExp {
					t.Errorf("[%s] Error in response:%s expected:%s", c.name, b, c.resExp)
				}
			case "networks":
				var got []string
				if err = json.Unmarshal([]byte(b), &got); err != nil {
					t.Errorf("[%s] Error unmarshaling body:%s error:%s", c.name, b, err)
				}
				sort.Strings(got)
				exp := c.resExp.([]string)
				if len(got) != len(exp) {
					t.Errorf("[%s] Error in response:%v expected:%v", c.name, got, exp)
				} else {
					for i := 0; i < len(exp); i++ {
						if got[i] != exp[i] {
							t.Errorf("[%s] Error in response:%v expected:%v", c.name, got, exp)
						}
					}
				}
			case "addCols", "cols":
				var got []assets.Collectible
				if b != "" && b != "null" {
					if err = json.Unmarshal([]byte(b), &got); err != nil {
						t.Errorf("[%s] Error unmarshaling body:%s error:%s", c.name, b, err)
					}
				}
				exp := c.resExp.([]assets.Collectible)
				if len(got) != len(exp) {
					t.Errorf("[%s] Error in response:%v expected:%v", c.name, got, exp)
				} else if len(exp) > 0 && (got[0].Address != exp[0].Address || got[0].TokenID != exp[0].TokenID || got[0].Source != exp[0].Source) {
					t.Errorf("[%s] Error in response:%v expected:%v", c.name, got[0], exp[0])
				}
			case "addToks", "toks":
				var got []assets.Token
				if b != "" && b != "null" {
					if err = json.Unmarshal([]byte(b), &got); err != nil {
						t.Errorf("[%s] Error unmarshaling body:%s error:%s", c.name, b, err)
					}
				}
				exp := c.resExp.([]assets.Token)
				if len(got) != len(exp) {
					t.Errorf("[%s] Error in response:%v expected:%v", c.name, got, exp)
				} else if len(exp) > 0 && (got[0].Address != exp[0].Address || got[0].Name != exp[0].Name) {
					t.Errorf("[%s] Error in response:%v expected:%v", c.name, got[0], exp[0])
				}
			case "cons":
				var got []assets.Contract
				if b != "" && b != "null" {
					if err = json.Unmarshal([]byte(b), &got); err != nil {
						t.Errorf("[%s] Error unmarshaling body:%s error:%s", c.name, b, err)
					}
				}
				if len(got) != c.resExp.(int) {
					t.Errorf("[%s] Error in response:%v expected %d contracts", c.name, got, c.resExp.(int))
				}
			case "assets":
				var got assets.State
				if err = json.Unmarshal([]byte(b), &got); err != nil {
					t.Errorf("[%s] Error unmarshaling body:%s error:%s", c.name, b, err)
				}
				if len(got.Collectibles) != c.resExp.(int) {
					t.Errorf("[%s] Error in response:%d collectibles expected:%d", c.name, len(got.Collectibles), c.resExp.(int))
				}
			case "detect":
				var got DetectionStatus
				if err = json.Unmarshal([]byte(b), &got); err != nil {
					t.Errorf("[%s] Error unmarshaling body:%s error:%s", c.name, b, err)
				}
				exp := c.resExp.(DetectionStatus)
				if got != exp {
					t.Errorf("[%s] Error in response:%+v expected:%+v", c.name, got, exp)
				}
			}
		}
	}
}

// makeRequest places a http request on uri. Depending on method it will
// include obj in the request (ie. for POST and PUT). Returns the status
// code, the body and error fields of the received JSON response.
func makeRequest(method, uri string, obj interface{}) (s int, b, e string, err error) {
	var resp *http.Response
	switch method {
	case http.MethodGet:
		if resp, err = http.Get(uri); err != nil {
			return
		}
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		var body io.Reader
		if obj != nil {
			var pl []byte
			if pl, err = json.Marshal(obj); err != nil {
				return
			}
			body = bytes.NewBuffer(pl)
		}
		client := &http.Client{}
		var req *http.Request
		if req, err = http.NewRequest(method, uri, body); err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json;charset=utf8")
		if resp, err = client.Do(req); err != nil {
			return
		}
	default:
		err = errors.New("Method not found!!")
		return
	}

	s = resp.StatusCode
	var v struct {
		B string `json:"body"`
		E string `json:"error"`
	}
	var p []byte
	if p, err = io.ReadAll(resp.Body); err != nil {
		return
	}
	resp.Body.Close()
	if len(p) > 0 {
		err = json.Unmarshal(p, &v)
	}
	return s, v.B, v.E, err
}
