// Implements the lookup interface for ethereum networks.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/tarancss/ethcli"

	"github.com/openwalletd/nftd/lib/assets"
	"github.com/openwalletd/nftd/lib/chain/types"
)

// ERC-165 interface identifiers of the collectible standards.
const (
	erc721InterfaceID  = "0x80ac58cd"
	erc1155InterfaceID = "0xd9b67a26"
)

// Read-only fragments of the standard NFT ABIs. The two balanceOf overloads
// clash when parsed together, so each standard gets its own fragment.
const (
	erc721ABI = `[
	{"constant":true,"inputs":[{"name":"interfaceId","type":"bytes4"}],"name":"supportsInterface","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"ownerOf","outputs":[{"name":"","type":"address"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"}]`

	erc1155ABI = `[
	{"constant":true,"inputs":[{"name":"account","type":"address"},{"name":"id","type":"uint256"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"id","type":"uint256"}],"name":"uri","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"}]`
)

// Ethereum implements chain lookups against an ethereum-type node. Contract
// name, symbol and decimals go through ethcli (the selectors are shared with
// ERC20), NFT-specific calls are ABI-packed and sent through a bound
// contract caller.
type Ethereum struct {
	c       *ethcli.EthCli
	ec      *ethclient.Client
	abi721  abi.ABI
	abi1155 abi.ABI
}

// Init returns a connection to an ethereum node, using secret if necessary
// for basic authentication.
func Init(node, secret string) (*Ethereum, error) {
	c := ethcli.Init(node, secret)
	if c == nil {
		return nil, errors.New("cannot connect to ethereum node " + node)
	}
	ec, err := ethclient.Dial(node)
	if err != nil {
		c.End()

		return nil, fmt.Errorf("dial %s: %w", node, err)
	}
	a721, err := abi.JSON(strings.NewReader(erc721ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc721 abi: %w", err)
	}
	a1155, err := abi.JSON(strings.NewReader(erc1155ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc1155 abi: %w", err)
	}

	return &Ethereum{c: c, ec: ec, abi721: a721, abi1155: a1155}, nil
}

// Close ends the node connections.
func (e *Ethereum) Close() {
	e.c.End()
	e.ec.Close()
}

// Name returns the contract's name.
func (e *Ethereum) Name(ctx context.Context, contract string) (string, error) {
	return e.c.GetTokenName(contract)
}

// Symbol returns the contract's symbol.
func (e *Ethereum) Symbol(ctx context.Context, contract string) (string, error) {
	return e.c.GetTokenSymbol(contract)
}

// Token returns the name, symbol and decimals of a valid ERC20 token.
func (e *Ethereum) Token(ctx context.Context, contract string) (t types.Token, err error) {
	if t.Name, err = e.c.GetTokenName(contract); err != nil {
		return
	}
	if t.Symbol, err = e.c.GetTokenSymbol(contract); err != nil {
		return
	}
	var dec uint64
	if dec, err = e.c.GetTokenDecimals(contract); err != nil {
		return
	}
	t.Decimals = uint8(dec)

	return
}

// Standard probes the contract with the ERC-165 interface ids. A contract
// that answers neither probe is not a valid collectible contract.
func (e *Ethereum) Standard(ctx context.Context, contract string) (assets.Standard, error) {
	if ok, err := e.supports(ctx, contract, erc721InterfaceID); err == nil && ok {
		return assets.ERC721, nil
	}
	if ok, err := e.supports(ctx, contract, erc1155InterfaceID); err == nil && ok {
		return assets.ERC1155, nil
	}

	return "", types.ErrNoStandard
}

// OwnsToken reports whether owner is the current holder of the ERC721 token.
func (e *Ethereum) OwnsToken(ctx context.Context, contract, owner, tokenID string) (bool, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return false, err
	}
	var out []interface{}
	c := e.bound(contract, e.abi721)
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "ownerOf", id); err != nil {
		return false, fmt.Errorf("ownerOf %s/%s: %w", contract, tokenID, err)
	}
	got := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)

	return got == common.HexToAddress(owner), nil
}

// BalanceOf returns the ERC1155 balance of owner for the token id.
func (e *Ethereum) BalanceOf(ctx context.Context, contract, owner, tokenID string) (*big.Int, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	var out []interface{}
	c := e.bound(contract, e.abi1155)
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", common.HexToAddress(owner), id); err != nil {
		return nil, fmt.Errorf("balanceOf %s/%s: %w", contract, tokenID, err)
	}

	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// TokenURI resolves the metadata URI for the token. For ERC1155 the "{id}"
// placeholder is substituted with the zero-padded hex id per the standard.
func (e *Ethereum) TokenURI(ctx context.Context, contract, tokenID string, std assets.Standard) (string, error) {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return "", err
	}
	method, parsed := "tokenURI", e.abi721
	if std == assets.ERC1155 {
		method, parsed = "uri", e.abi1155
	}
	var out []interface{}
	c := e.bound(contract, parsed)
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, method, id); err != nil {
		return "", fmt.Errorf("%s %s/%s: %w", method, contract, tokenID, err)
	}
	uri := *abi.ConvertType(out[0], new(string)).(*string)
	if uri == "" {
		return "", types.ErrNoURI
	}
	if std == assets.ERC1155 {
		uri = strings.Replace(uri, "{id}", fmt.Sprintf("%064x", id), 1)
	}

	return uri, nil
}

// supports asks the contract whether it implements the ERC-165 interface id.
func (e *Ethereum) supports(ctx context.Context, contract, interfaceID string) (bool, error) {
	var id [4]byte
	copy(id[:], common.FromHex(interfaceID))
	var out []interface{}
	c := e.bound(contract, e.abi721)
	if err := c.Call(&bind.CallOpts{Context: ctx}, &out, "supportsInterface", id); err != nil {
		return false, fmt.Errorf("supportsInterface %s: %w", contract, err)
	}

	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// bound wraps the contract address with a read-only caller.
func (e *Ethereum) bound(contract string, parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(common.HexToAddress(contract), parsed, e.ec, nil, nil)
}

// parseTokenID accepts decimal or 0x-prefixed hex token ids.
func parseTokenID(tokenID string) (*big.Int, error) {
	if id, ok := new(big.Int).SetString(tokenID, 10); ok {
		return id, nil
	}
	if strings.HasPrefix(tokenID, "0x") || strings.HasPrefix(tokenID, "0X") {
		if id, ok := new(big.Int).SetString(tokenID[2:], 16); ok {
			return id, nil
		}
	}

	return nil, types.ErrBadTokenID
}
