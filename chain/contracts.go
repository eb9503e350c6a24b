package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Caller is the part of *ethclient.Client the gateway needs.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Config struct {
	RPC         string `json:"rpc"`
	NFT         string `json:"nft"`
	Marketplace string `json:"marketplace"`
	Revision    string `json:"revision"` // "current" (default) or "legacy"
}

// Contracts reads the ticket NFT and marketplace contracts with eth_call.
type Contracts struct {
	caller      Caller
	nft         common.Address
	marketplace common.Address
	nftABI      abi.ABI
	marketABI   abi.ABI
	legacy      bool
}

// Dial connects to the JSON-RPC endpoint in cfg.
func Dial(ctx context.Context, cfg Config) (*ethclient.Client, error) {
	return ethclient.DialContext(ctx, cfg.RPC)
}

func New(caller Caller, cfg Config) (*Contracts, error) {
	if !common.IsHexAddress(cfg.NFT) {
		return nil, fmt.Errorf("bad nft contract address %q", cfg.NFT)
	}
	if !common.IsHexAddress(cfg.Marketplace) {
		return nil, fmt.Errorf("bad marketplace contract address %q", cfg.Marketplace)
	}
	nftSource := nftCurrentABI
	legacy := false
	switch cfg.Revision {
	case "", RevisionCurrent:
	case RevisionLegacy:
		nftSource = nftLegacyABI
		legacy = true
	default:
		return nil, fmt.Errorf("unknown nft abi revision %q", cfg.Revision)
	}
	nftABI, err := abi.JSON(strings.NewReader(nftSource))
	if err != nil {
		return nil, fmt.Errorf("parse nft abi: %w", err)
	}
	marketABI, err := abi.JSON(strings.NewReader(marketplaceABI))
	if err != nil {
		return nil, fmt.Errorf("parse marketplace abi: %w", err)
	}
	return &Contracts{
		caller:      caller,
		nft:         common.HexToAddress(cfg.NFT),
		marketplace: common.HexToAddress(cfg.Marketplace),
		nftABI:      nftABI,
		marketABI:   marketABI,
		legacy:      legacy,
	}, nil
}

func (c *Contracts) NFTAddress() common.Address         { return c.nft }
func (c *Contracts) MarketplaceAddress() common.Address { return c.marketplace }

// PackNFT builds call data for an NFT contract method.
func (c *Contracts) PackNFT(method string, args ...interface{}) ([]byte, error) {
	return c.nftABI.Pack(method, args...)
}

// PackMarketplace builds call data for a marketplace contract method.
func (c *Contracts) PackMarketplace(method string, args ...interface{}) ([]byte, error) {
	return c.marketABI.Pack(method, args...)
}

func (c *Contracts) NextSaleID(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, c.marketplace, c.marketABI, "nextSaleId")
	if err != nil {
		return 0, err
	}
	return toUint64("nextSaleId", out[0])
}

type saleTuple struct {
	Seller         common.Address
	TokenId        *big.Int
	ListPriceUsd   *big.Int
	BuyNowPriceUsd *big.Int
	CurrentBidUsd  *big.Int
	CurrentBidder  common.Address
	EndTime        *big.Int
	Active         bool
}

func (c *Contracts) GetSale(ctx context.Context, saleID uint64) (*Sale, error) {
	out, err := c.call(ctx, c.marketplace, c.marketABI, "getSale", new(big.Int).SetUint64(saleID))
	if err != nil {
		return nil, err
	}
	t, ok := abi.ConvertType(out[0], new(saleTuple)).(*saleTuple)
	if !ok {
		return nil, fmt.Errorf("getSale %d: unexpected output %T", saleID, out[0])
	}
	// unknown ids come back as an all-zero struct
	if t.Seller == ZeroAddress {
		return nil, fmt.Errorf("getSale %d: %w", saleID, ErrNotFound)
	}
	tokenID, err := toUint64("getSale.tokenId", t.TokenId)
	if err != nil {
		return nil, err
	}
	return &Sale{
		Seller:         t.Seller,
		TokenID:        tokenID,
		ListPriceUSD:   t.ListPriceUsd,
		BuyNowPriceUSD: t.BuyNowPriceUsd,
		CurrentBidUSD:  t.CurrentBidUsd,
		CurrentBidder:  t.CurrentBidder,
		EndTime:        toUnix(t.EndTime),
		Active:         t.Active,
	}, nil
}

func (c *Contracts) TotalSupply(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, c.nft, c.nftABI, "totalSupply")
	if err != nil {
		return 0, err
	}
	return toUint64("totalSupply", out[0])
}

type nftData struct {
	Picture       string
	Location      string
	Datetime      *big.Int
	Consumed      bool
	OriginalOwner common.Address
	CurrentOwner  common.Address
	EventType     uint8
}

func (c *Contracts) GetNFTData(ctx context.Context, tokenID uint64) (*Ticket, error) {
	data, err := c.callRaw(ctx, c.nft, c.nftABI, "getNFTData", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, err
	}
	var d nftData
	if err = c.nftABI.UnpackIntoInterface(&d, "getNFTData", data); err != nil {
		return nil, fmt.Errorf("unpack getNFTData %d: %w", tokenID, err)
	}
	return &Ticket{
		TokenID:       tokenID,
		Picture:       d.Picture,
		Location:      d.Location,
		Datetime:      toUnix(d.Datetime),
		Consumed:      d.Consumed,
		OriginalOwner: d.OriginalOwner,
		CurrentOwner:  d.CurrentOwner,
		EventType:     d.EventType,
		HasEventType:  !c.legacy,
	}, nil
}

func (c *Contracts) OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error) {
	return c.addressCall(ctx, "ownerOf", tokenID)
}

func (c *Contracts) GetApproved(ctx context.Context, tokenID uint64) (common.Address, error) {
	return c.addressCall(ctx, "getApproved", tokenID)
}

func (c *Contracts) addressCall(ctx context.Context, method string, tokenID uint64) (common.Address, error) {
	out, err := c.call(ctx, c.nft, c.nftABI, method, new(big.Int).SetUint64(tokenID))
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s %d: unexpected output %T", method, tokenID, out[0])
	}
	return addr, nil
}

func (c *Contracts) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.callRaw(ctx, to, contract, method, args...)
	if err != nil {
		return nil, err
	}
	out, err := contract.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", method, ErrNotFound)
	}
	return out, nil
}

func (c *Contracts) callRaw(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]byte, error) {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		if isRevert(err) {
			return nil, fmt.Errorf("%s: %w: %s", method, ErrNotFound, err)
		}
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(result) == 0 {
		// a configuration problem, not a missing record
		return nil, fmt.Errorf("%s at %s: %w", method, to.Hex(), ErrNoCode)
	}
	return result, nil
}

// revertCode is the JSON-RPC error code nodes use for a reverted eth_call.
const revertCode = 3

// isRevert tells a reverted call from node and transport failures, which
// carry other codes (-32005 limit exceeded, -32000 header not found, ...).
func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertCode {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

func toUint64(what string, v interface{}) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return 0, fmt.Errorf("%s: unexpected output %T", what, v)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("%s: %s overflows uint64", what, n)
	}
	return n.Uint64(), nil
}

func toUnix(n *big.Int) int64 {
	if n == nil {
		return 0
	}
	if !n.IsInt64() {
		return math.MaxInt64
	}
	return n.Int64()
}
