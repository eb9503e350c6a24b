package marketplace

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/xyths/ticket-market/chain"
	"github.com/xyths/ticket-market/pricing"
)

var ErrInvalidListing = errors.New("invalid listing")

// MaxListingHours bounds the auction duration offered to sellers.
const MaxListingHours = 24 * 30

// Transaction is a contract call the wallet may sign. The service never
// submits it.
type Transaction struct {
	To     common.Address `json:"to"`
	Method string         `json:"functionName"`
	Args   []string       `json:"args"`
	// Value is wei for payable calls; bids leave it to the bidder.
	Value string        `json:"value,omitempty"`
	Data  hexutil.Bytes `json:"data"`
}

// Packer encodes calls to the two contracts.
type Packer interface {
	NFTAddress() common.Address
	MarketplaceAddress() common.Address
	PackNFT(method string, args ...interface{}) ([]byte, error)
	PackMarketplace(method string, args ...interface{}) ([]byte, error)
}

type Planner struct {
	contracts Packer
}

func NewPlanner(p Packer) *Planner {
	return &Planner{contracts: p}
}

// SaleActions lists what wallet can do with a sale at now. quote may be nil,
// in which case buyNow is not offered.
func (p *Planner) SaleActions(e *SaleEntry, wallet string, now time.Time, quote *pricing.Quote) ([]Transaction, error) {
	txs := make([]Transaction, 0, 2)
	sale := &e.Sale
	saleID := new(big.Int).SetUint64(e.SaleID)

	if claim, ok := Classify(e.SaleID, sale, wallet, now); ok {
		tx, err := p.marketTx(claim.Method(), "", saleID)
		if err != nil {
			return nil, err
		}
		return append(txs, tx), nil
	}
	w := strings.ToLower(strings.TrimSpace(wallet))
	if !sale.Active || Expired(sale, now) || w == "" || w == chain.Lower(sale.Seller) {
		return txs, nil
	}
	bid, err := p.marketTx("placeBid", "", saleID)
	if err != nil {
		return nil, err
	}
	txs = append(txs, bid)

	buyNow := pricing.NewUSD(sale.BuyNowPriceUSD)
	if quote == nil || buyNow.IsZero() {
		return txs, nil
	}
	wei, err := pricing.USDToWei(buyNow, quote.USDPerETH)
	if err != nil {
		return nil, err
	}
	buy, err := p.marketTx("buyNow", wei.String(), saleID)
	if err != nil {
		return nil, err
	}
	return append(txs, buy), nil
}

// TicketActions lists approve and consume calls open to wallet. Listing needs
// prices, see Listing.
func (p *Planner) TicketActions(st *TicketState, wallet string) ([]Transaction, error) {
	txs := make([]Transaction, 0, 2)
	w := strings.ToLower(strings.TrimSpace(wallet))
	if w == "" || st.Consumed {
		return txs, nil
	}
	tokenID := new(big.Int).SetUint64(st.TokenID)
	if w == chain.Lower(st.Owner) && !st.OnSale && st.Approved != p.contracts.MarketplaceAddress() {
		tx, err := p.nftTx("approve", p.contracts.MarketplaceAddress(), tokenID)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if w == chain.Lower(st.OriginalOwner) {
		tx, err := p.nftTx("consume", tokenID)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// CanList reports whether wallet may put the token up for sale right now.
func (p *Planner) CanList(st *TicketState, wallet string) bool {
	w := strings.ToLower(strings.TrimSpace(wallet))
	return w != "" && w == chain.Lower(st.Owner) && !st.Consumed && !st.OnSale
}

// CheckListing validates listing terms without touching the chain.
func CheckListing(start, buyNow pricing.USD, hours int) error {
	switch {
	case start.IsZero():
		return fmt.Errorf("%w: starting price must be positive", ErrInvalidListing)
	case buyNow.Cmp(start) < 0:
		return fmt.Errorf("%w: buy now price below starting price", ErrInvalidListing)
	case hours <= 0 || hours > MaxListingHours:
		return fmt.Errorf("%w: duration must be 1 to %d hours", ErrInvalidListing, MaxListingHours)
	}
	return nil
}

// Listing builds the listNFT call for the given prices and duration.
func (p *Planner) Listing(tokenID uint64, start, buyNow pricing.USD, hours int) (Transaction, error) {
	if err := CheckListing(start, buyNow, hours); err != nil {
		return Transaction{}, err
	}
	duration := big.NewInt(int64(hours) * 3600)
	return p.marketTx("listNFT", "", new(big.Int).SetUint64(tokenID), start.Int(), buyNow.Int(), duration)
}

// Mint builds the mint call for an uploaded ticket.
func (p *Planner) Mint(picture, location string, datetime int64) (Transaction, error) {
	return p.nftTx("mint", picture, location, big.NewInt(datetime))
}

func (p *Planner) nftTx(method string, args ...interface{}) (Transaction, error) {
	data, err := p.contracts.PackNFT(method, args...)
	if err != nil {
		return Transaction{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return Transaction{To: p.contracts.NFTAddress(), Method: method, Args: argStrings(args), Data: data}, nil
}

func (p *Planner) marketTx(method, value string, args ...interface{}) (Transaction, error) {
	data, err := p.contracts.PackMarketplace(method, args...)
	if err != nil {
		return Transaction{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return Transaction{
		To:     p.contracts.MarketplaceAddress(),
		Method: method,
		Args:   argStrings(args),
		Value:  value,
		Data:   data,
	}, nil
}

func argStrings(args []interface{}) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case common.Address:
			out[i] = v.Hex()
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
