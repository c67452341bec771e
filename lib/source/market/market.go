// Package market fetches the collectibles an account owns from a
// marketplace API. The marketplace serves two networks only; every other
// network yields an empty result.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"time"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/util"
)

// pageLimit is the page size requested from the marketplace. A page shorter
// than this ends the pagination.
const pageLimit = 50

// endpoints maps the networks the marketplace recognizes to their API hosts.
var endpoints = map[string]string{
	"mainnet": "https://api.opensea.io",
	"rinkeby": "https://rinkeby-api.opensea.io",
}

// thumbSize matches the trailing size selector of a thumbnail URL so low
// resolution previews can be upgraded.
var thumbSize = regexp.MustCompile(`=s\d+$`)

// Errors returned
var (
	ErrBadResponse = errors.New("marketplace response not usable")
)

// wire layer of the marketplace response, trimmed to the fields used
type response struct {
	Assets []asset `json:"assets"`
}

type asset struct {
	TokenID           string        `json:"token_id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	ImageURL          string        `json:"image_url"`
	ImageThumbnailURL string        `json:"image_thumbnail_url"`
	Contract          assetContract `json:"asset_contract"`
}

type assetContract struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	SchemaName  string `json:"schema_name"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
}

// Market queries a marketplace REST endpoint for the assets an account owns.
type Market struct {
	base   string
	key    string
	client *http.Client
}

// New returns a Market source. base overrides the built-in per network
// endpoints when non-empty (used for tests and self-hosted mirrors), key is
// sent as the API key header when non-empty and client may be nil to use a
// default one.
func New(base, key string, client *http.Client) *Market {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &Market{base: base, key: key, client: client}
}

// Name identifies the source.
func (s *Market) Name() string { return assets.SourceMarket }

// Networks lists the networks the marketplace recognizes.
func (s *Market) Networks() []string {
	return util.SortedKeys(endpoints)
}

// Fetch pages through the account's assets until a short page. Networks the
// marketplace does not recognize yield empty results. Items outside the
// recognized standards are skipped.
func (s *Market) Fetch(ctx context.Context, account, network string) ([]assets.Collectible, []assets.Contract, error) {
	base, ok := endpoints[network]
	if !ok {
		return nil, nil, nil
	}
	if s.base != "" {
		base = s.base
	}

	var cols []assets.Collectible
	var cons []assets.Contract
	seen := make(map[string]bool)
	for offset := 0; ; offset += pageLimit {
		page, err := s.page(ctx, base, account, offset)
		if err != nil {
			return nil, nil, err
		}
		for _, a := range page.Assets {
			std, err := assets.ParseStandard(a.Contract.SchemaName)
			if err != nil {
				continue
			}
			col := assets.Collectible{
				Address:     a.Contract.Address,
				TokenID:     a.TokenID,
				Name:        a.Name,
				Image:       displayImage(a),
				Description: a.Description,
				Standard:    std,
				Source:      assets.SourceMarket,
			}
			if std == assets.ERC721 {
				col.Balance = big.NewInt(1)
			}
			cols = append(cols, col)

			addr := assets.ChecksumAddress(a.Contract.Address)
			if seen[addr] {
				continue
			}
			seen[addr] = true
			cons = append(cons, assets.Contract{
				Address:     a.Contract.Address,
				Name:        a.Contract.Name,
				Symbol:      a.Contract.Symbol,
				Logo:        a.Contract.ImageURL,
				Description: a.Contract.Description,
				Standard:    std,
			})
		}
		if len(page.Assets) < pageLimit {
			break
		}
	}

	return cols, cons, nil
}

func (s *Market) page(ctx context.Context, base, account string, offset int) (response, error) {
	var body response
	url := fmt.Sprintf("%s/api/v1/assets?owner=%s&offset=%d&limit=%d", base, account, offset, pageLimit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return body, fmt.Errorf("marketplace request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.key != "" {
		req.Header.Set("X-API-KEY", s.key)
	}
	res, err := s.client.Do(req)
	if err != nil {
		return body, fmt.Errorf("marketplace fetch: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return body, fmt.Errorf("marketplace fetch %s: %w", res.Status, ErrBadResponse)
	}
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return body, fmt.Errorf("marketplace decode: %w", err)
	}

	return body, nil
}

// displayImage picks the full image when present and otherwise upgrades the
// thumbnail's trailing size selector to a 250px variant.
func displayImage(a asset) string {
	if a.ImageURL != "" {
		return a.ImageURL
	}

	return thumbSize.ReplaceAllString(a.ImageThumbnailURL, "=s250")
}
