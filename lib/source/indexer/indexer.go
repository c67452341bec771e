// Package indexer fetches collectible balances from a contract indexer API.
// The indexer keys its endpoints by numeric chain id, so the adapter only
// serves networks it can map to one and reports every other network as
// empty.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/util"
)

// placeholderImage is served for records whose metadata carries no image.
const placeholderImage = "https://static.nftd.dev/images/nft-placeholder.svg"

// chainIDs maps network names to the indexer's chain identifiers.
var chainIDs = map[string]int{
	"mainnet":     1,
	"bsc":         56,
	"bsc-testnet": 97,
	"matic":       137,
}

// Errors returned
var (
	ErrBadResponse = errors.New("indexer response not usable")
)

// wire layer of the indexer response, trimmed to the fields used
type response struct {
	Data struct {
		Items []item `json:"items"`
	} `json:"data"`
	Error        bool   `json:"error"`
	ErrorMessage string `json:"error_message"`
}

type item struct {
	ContractName    string    `json:"contract_name"`
	ContractSymbol  string    `json:"contract_ticker_symbol"`
	ContractAddress string    `json:"contract_address"`
	LogoURL         string    `json:"logo_url"`
	NFTData         []nftData `json:"nft_data"`
}

type nftData struct {
	TokenID         string       `json:"token_id"`
	TokenBalance    string       `json:"token_balance"`
	SupportsERC1155 bool         `json:"supports_erc1155"`
	ExternalData    externalData `json:"external_data"`
}

type externalData struct {
	Name        string `json:"name"`
	Image       string `json:"image"`
	Description string `json:"description"`
}

// Indexer queries a contract indexer REST endpoint for the NFT balances of
// an account.
type Indexer struct {
	base   string
	key    string
	client *http.Client
}

// New returns an Indexer for the given base URL. key is appended to the
// query when non-empty and client may be nil to use a default one.
func New(base, key string, client *http.Client) *Indexer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Indexer{base: base, key: key, client: client}
}

// Name identifies the source.
func (s *Indexer) Name() string { return assets.SourceIndexer }

// Networks lists the networks that map to a known chain id.
func (s *Indexer) Networks() []string {
	return util.SortedKeys(chainIDs)
}

// Fetch queries the indexer for the account's NFT balances. Networks
// without a chain id and an unconfigured base URL yield empty results.
func (s *Indexer) Fetch(ctx context.Context, account, network string) ([]assets.Collectible, []assets.Contract, error) {
	chainID, ok := chainIDs[network]
	if !ok || s.base == "" {
		return nil, nil, nil
	}

	url := fmt.Sprintf("%s/v1/%d/address/%s/balances_v2/?nft=true&no-nft-fetch=false", s.base, chainID, account)
	if s.key != "" {
		url += "&key=" + s.key
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("indexer request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	res, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("indexer fetch: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("indexer fetch %s: %w", res.Status, ErrBadResponse)
	}
	var body response
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, nil, fmt.Errorf("indexer decode: %w", err)
	}
	if body.Error {
		return nil, nil, fmt.Errorf("indexer error %q: %w", body.ErrorMessage, ErrBadResponse)
	}

	var cols []assets.Collectible
	var cons []assets.Contract
	for _, it := range body.Data.Items {
		if len(it.NFTData) == 0 {
			continue
		}
		for _, rec := range it.NFTData {
			col := assets.Collectible{
				Address:     it.ContractAddress,
				TokenID:     rec.TokenID,
				Name:        rec.ExternalData.Name,
				Image:       rec.ExternalData.Image,
				Description: rec.ExternalData.Description,
				Standard:    standardOf(rec),
				Balance:     balanceOf(rec),
				Source:      assets.SourceIndexer,
			}
			if col.Image == "" {
				col.Image = placeholderImage
			}
			if col.Balance != nil && col.Balance.Sign() == 0 {
				continue
			}
			cols = append(cols, col)
		}
		std := standardOf(it.NFTData[0])
		cons = append(cons, assets.Contract{
			Address:  it.ContractAddress,
			Name:     contractLabel(it.ContractName, chainID, std),
			Symbol:   it.ContractSymbol,
			Logo:     it.LogoURL,
			Standard: std,
		})
	}

	return cols, cons, nil
}

func standardOf(rec nftData) assets.Standard {
	if rec.SupportsERC1155 {
		return assets.ERC1155
	}

	return assets.ERC721
}

// balanceOf parses the reported token balance. ERC721 records default to 1
// when the indexer omits the balance, ERC1155 ones stay unknown.
func balanceOf(rec nftData) *big.Int {
	if b, ok := new(big.Int).SetString(rec.TokenBalance, 10); ok {
		return b
	}
	if !rec.SupportsERC1155 {
		return big.NewInt(1)
	}

	return nil
}

// contractLabel renders the display name of a contract, ie.
// "CryptoKitties (ERC721)". The BSC chain family labels its standards with
// the BEP prefix instead.
func contractLabel(name string, chainID int, std assets.Standard) string {
	prefix := "ERC"
	if chainID == 56 || chainID == 97 {
		prefix = "BEP"
	}
	variant := "721"
	if std == assets.ERC1155 {
		variant = "1155"
	}

	return fmt.Sprintf("%s (%s%s)", name, prefix, variant)
}
