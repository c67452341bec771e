package normalize

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/chain/types"
	"github.com/openwalletd/nftd/lib/metadata"
)

const (
	owner = "0x5a384227b65fa093dec03ec34e111db80a040615"
	c721  = "0x06012c8cf97bead5deae237070f9587f8e7a266d"
	c1155 = "0xfaafdc07907ff5120a76b34b731b278c38d6043c"
)

type fakeLookup struct {
	names     map[string]string
	symbols   map[string]string
	standards map[string]assets.Standard
	owners    map[string]string
	balances  map[string]*big.Int
	uris      map[string]string
}

func key(contract, tokenID string) string {
	return strings.ToLower(contract) + "_" + tokenID
}

func (f *fakeLookup) Close() {}

func (f *fakeLookup) Name(ctx context.Context, contract string) (string, error) {
	if n, ok := f.names[strings.ToLower(contract)]; ok {
		return n, nil
	}

	return "", errors.New("execution reverted")
}

func (f *fakeLookup) Symbol(ctx context.Context, contract string) (string, error) {
	if s, ok := f.symbols[strings.ToLower(contract)]; ok {
		return s, nil
	}

	return "", errors.New("execution reverted")
}

func (f *fakeLookup) Standard(ctx context.Context, contract string) (assets.Standard, error) {
	if s, ok := f.standards[strings.ToLower(contract)]; ok {
		return s, nil
	}

	return "", types.ErrNoStandard
}

func (f *fakeLookup) OwnsToken(ctx context.Context, contract, own, tokenID string) (bool, error) {
	o, ok := f.owners[key(contract, tokenID)]
	if !ok {
		return false, errors.New("owner query for nonexistent token")
	}

	return strings.EqualFold(o, own), nil
}

func (f *fakeLookup) BalanceOf(ctx context.Context, contract, own, tokenID string) (*big.Int, error) {
	b, ok := f.balances[key(contract, tokenID)]
	if !ok {
		return nil, errors.New("balance lookup failed")
	}

	return new(big.Int).Set(b), nil
}

func (f *fakeLookup) TokenURI(ctx context.Context, contract, tokenID string, std assets.Standard) (string, error) {
	u, ok := f.uris[key(contract, tokenID)]
	if !ok {
		return "", types.ErrNoURI
	}

	return u, nil
}

func (f *fakeLookup) Token(ctx context.Context, contract string) (types.Token, error) {
	return types.Token{}, errors.New("not a fungible token")
}

type fakeMeta struct {
	docs map[string]metadata.Document
}

func (f fakeMeta) JSON(ctx context.Context, url string, out interface{}) error {
	d, ok := f.docs[url]
	if !ok {
		return errors.New("fetch failed")
	}
	*out.(*metadata.Document) = d

	return nil
}

func testNormalizer() *Normalizer {
	return New(
		&fakeLookup{
			names:     map[string]string{c721: "CryptoKitties", c1155: "OpenSea Shared"},
			symbols:   map[string]string{c721: "CK", c1155: "OPENSTORE"},
			standards: map[string]assets.Standard{c721: assets.ERC721, c1155: assets.ERC1155},
			owners:    map[string]string{key(c721, "1"): owner, key(c721, "2"): "0x000000000000000000000000000000000000dEaD"},
			balances:  map[string]*big.Int{key(c1155, "5"): big.NewInt(3), key(c1155, "6"): big.NewInt(0)},
			uris:      map[string]string{key(c721, "1"): "https://meta/1.json"},
		},
		fakeMeta{docs: map[string]metadata.Document{
			"https://meta/1.json": {Name: "Kitty #1", Image: "https://img/1.png", Description: "a kitty"},
		}},
	)
}

// TestCollectibleBalances covers the balance resolution rules: ERC721 fixed
// to 1 on confirmed ownership, ERC1155 live balance, zero meaning not owned
// and lookup failure meaning unknown.
func TestCollectibleBalances(t *testing.T) {
	n := testNormalizer()
	ctx := context.Background()

	c, err := n.Collectible(ctx, assets.Collectible{Address: c721, TokenID: "1", Standard: assets.ERC721}, owner, false)
	if err != nil || c.Balance == nil || c.Balance.Int64() != 1 {
		t.Errorf("erc721 owned: err=%v balance=%v", err, c.Balance)
	}

	if _, err = n.Collectible(ctx, assets.Collectible{Address: c721, TokenID: "2", Standard: assets.ERC721}, owner, false); err != types.ErrNotOwned {
		t.Errorf("erc721 not owned: expected ErrNotOwned, got %v", err)
	}

	c, err = n.Collectible(ctx, assets.Collectible{Address: c1155, TokenID: "5", Standard: assets.ERC1155}, owner, false)
	if err != nil || c.Balance == nil || c.Balance.Int64() != 3 {
		t.Errorf("erc1155 balance: err=%v balance=%v", err, c.Balance)
	}

	if _, err = n.Collectible(ctx, assets.Collectible{Address: c1155, TokenID: "6", Standard: assets.ERC1155}, owner, false); err != types.ErrNotOwned {
		t.Errorf("erc1155 zero balance: expected ErrNotOwned, got %v", err)
	}

	// a failed balance lookup leaves the balance unknown, it is not zero
	// and it is not an error
	c, err = n.Collectible(ctx, assets.Collectible{Address: c1155, TokenID: "7", Standard: assets.ERC1155}, owner, false)
	if err != nil || c.Balance != nil {
		t.Errorf("erc1155 lookup failure: err=%v balance=%v", err, c.Balance)
	}
}

// TestCollectibleFill checks the field fill order toggled by detectFromAPI.
func TestCollectibleFill(t *testing.T) {
	n := testNormalizer()
	ctx := context.Background()
	item := assets.Collectible{Address: c721, TokenID: "1", Standard: assets.ERC721, Balance: big.NewInt(1)}

	// chain first: the contract name wins, document still fills the rest
	c, err := n.Collectible(ctx, item, "", false)
	if err != nil {
		t.Errorf("normalize: %v", err)
	}
	if c.Name != "CryptoKitties" || c.Image != "https://img/1.png" || c.Description != "a kitty" {
		t.Errorf("chain-first fill: %+v", c)
	}

	// metadata-API first: the document name wins
	c, err = n.Collectible(ctx, item, "", true)
	if err != nil {
		t.Errorf("normalize: %v", err)
	}
	if c.Name != "Kitty #1" {
		t.Errorf("api-first fill: %+v", c)
	}

	// unresolvable standard rejects the item
	if _, err = n.Collectible(ctx, assets.Collectible{Address: "0x00000000000000000000000000000000000000aa", TokenID: "1"}, "", false); err == nil {
		t.Errorf("expected standard probe rejection")
	}
}

// TestContract checks contract normalization: fills, the capability probe
// rejection and the name/symbol completeness rule.
func TestContract(t *testing.T) {
	n := testNormalizer()
	ctx := context.Background()

	c, err := n.Contract(ctx, assets.Contract{Address: c721})
	if err != nil {
		t.Errorf("contract: %v", err)
	}
	if c.Name != "CryptoKitties" || c.Symbol != "CK" || c.Standard != assets.ERC721 {
		t.Errorf("contract fill: %+v", c)
	}
	if c.Address != assets.ChecksumAddress(c721) {
		t.Errorf("expected checksummed address, got %s", c.Address)
	}

	// probe failure rejects the whole contract
	if _, err = n.Contract(ctx, assets.Contract{Address: "0x00000000000000000000000000000000000000aa"}); err == nil {
		t.Errorf("expected probe rejection")
	}

	// a contract with no resolvable symbol is incomplete
	bad := testNormalizer()
	bad.Chain.(*fakeLookup).symbols = nil
	if _, err = bad.Contract(ctx, assets.Contract{Address: c721}); !errors.Is(err, ErrIncomplete) {
		t.Errorf("expected ErrIncomplete, got %v", err)
	}
}
