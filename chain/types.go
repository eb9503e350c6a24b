package chain

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotFound means the contract has no record for the requested id.
var ErrNotFound = errors.New("not found on chain")

// ErrNoCode means an eth_call returned nothing, as it does for an address
// without contract code.
var ErrNoCode = errors.New("empty call result, no contract code at address")

// ZeroAddress is what the marketplace reports as bidder before the first bid.
var ZeroAddress = common.Address{}

// Gateway is the read side of the ticket NFT and marketplace contracts.
type Gateway interface {
	NextSaleID(ctx context.Context) (uint64, error)
	GetSale(ctx context.Context, saleID uint64) (*Sale, error)
	TotalSupply(ctx context.Context) (uint64, error)
	GetNFTData(ctx context.Context, tokenID uint64) (*Ticket, error)
	OwnerOf(ctx context.Context, tokenID uint64) (common.Address, error)
	GetApproved(ctx context.Context, tokenID uint64) (common.Address, error)
}

// Sale is one marketplace listing. USD amounts carry 8 implied decimals.
type Sale struct {
	Seller         common.Address
	TokenID        uint64
	ListPriceUSD   *big.Int
	BuyNowPriceUSD *big.Int
	CurrentBidUSD  *big.Int
	CurrentBidder  common.Address
	EndTime        int64 // unix seconds
	Active         bool
}

type saleJSON struct {
	Seller         common.Address `json:"seller"`
	TokenID        string         `json:"tokenId"`
	ListPriceUSD   string         `json:"listPriceUsd"`
	BuyNowPriceUSD string         `json:"buyNowPriceUsd"`
	CurrentBidUSD  string         `json:"currentBidUsd"`
	CurrentBidder  common.Address `json:"currentBidder"`
	EndTime        string         `json:"endTime"`
	Active         bool           `json:"active"`
}

// MarshalJSON writes ids, times and USD amounts as decimal strings.
func (s Sale) MarshalJSON() ([]byte, error) {
	return json.Marshal(saleJSON{
		Seller:         s.Seller,
		TokenID:        strconv.FormatUint(s.TokenID, 10),
		ListPriceUSD:   intString(s.ListPriceUSD),
		BuyNowPriceUSD: intString(s.BuyNowPriceUSD),
		CurrentBidUSD:  intString(s.CurrentBidUSD),
		CurrentBidder:  s.CurrentBidder,
		EndTime:        strconv.FormatInt(s.EndTime, 10),
		Active:         s.Active,
	})
}

// Ticket is what getNFTData reports for a token.
type Ticket struct {
	TokenID       uint64
	Picture       string
	Location      string
	Datetime      int64 // unix seconds
	Consumed      bool
	OriginalOwner common.Address
	CurrentOwner  common.Address
	EventType     uint8
	// HasEventType is false for tokens read through the legacy ABI.
	HasEventType bool
}

func intString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NormalizeAddress validates a hex address and returns it lowercased.
func NormalizeAddress(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), true
}

// Lower is the lowercase hex form used for address comparison.
func Lower(a common.Address) string {
	return strings.ToLower(a.Hex())
}
