package marketplace

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xyths/ticket-market/chain"
)

// SaleEntry is a sale together with the ticket it sells.
type SaleEntry struct {
	SaleID  uint64     `json:"saleId"`
	Sale    chain.Sale `json:"sale"`
	NFTData NFTData    `json:"nftData"`
}

type NFTData struct {
	Picture       string         `json:"picture"`
	Location      string         `json:"location"`
	Datetime      string         `json:"datetime"`
	Consumed      bool           `json:"consumed"`
	OriginalOwner common.Address `json:"originalOwner"`
	CurrentOwner  common.Address `json:"currentOwner"`
	EventName     string         `json:"eventName"`
	EventType     EventType      `json:"eventType"`
}

// ListActiveSales returns every active sale in sale id order.
func (s *Scanner) ListActiveSales(ctx context.Context) ([]SaleEntry, error) {
	total, err := s.saleCount(ctx)
	if err != nil {
		return nil, err
	}
	return scan[*chain.Sale, SaleEntry]{
		name:    "active_sales",
		fetch:   s.gw.GetSale,
		keep:    func(_ uint64, sale *chain.Sale) bool { return sale.Active },
		project: s.saleEntry,
	}.run(ctx, s.Sugar, total)
}

// GetSaleForToken finds the active sale of tokenID, or ErrNoActiveSale.
func (s *Scanner) GetSaleForToken(ctx context.Context, tokenID uint64) (*SaleEntry, error) {
	total, err := s.saleCount(ctx)
	if err != nil {
		return nil, err
	}
	found, err := scan[*chain.Sale, SaleEntry]{
		name:  "token_sale",
		fetch: s.gw.GetSale,
		keep: func(_ uint64, sale *chain.Sale) bool {
			return sale.Active && sale.TokenID == tokenID
		},
		project: s.saleEntry,
		limit:   1,
	}.run(ctx, s.Sugar, total)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNoActiveSale
	}
	return &found[0], nil
}

// GetSale looks one sale up by id. Inactive sales are ErrNoActiveSale.
func (s *Scanner) GetSale(ctx context.Context, saleID uint64) (*SaleEntry, error) {
	sale, err := s.gw.GetSale(ctx, saleID)
	if err != nil {
		return nil, lookupErr(fmt.Sprintf("getSale %d", saleID), err)
	}
	if !sale.Active {
		return nil, ErrNoActiveSale
	}
	e, err := s.saleEntry(ctx, saleID, sale)
	if err != nil {
		return nil, lookupErr(fmt.Sprintf("getNFTData %d", sale.TokenID), err)
	}
	return &e, nil
}

func (s *Scanner) saleEntry(ctx context.Context, id uint64, sale *chain.Sale) (SaleEntry, error) {
	t, err := s.gw.GetNFTData(ctx, sale.TokenID)
	if err != nil {
		return SaleEntry{}, err
	}
	// while listed the token sits in escrow, the seller is its owner
	return SaleEntry{SaleID: id, Sale: *sale, NFTData: s.nftData(t, sale.Seller)}, nil
}

func (s *Scanner) nftData(t *chain.Ticket, owner common.Address) NFTData {
	return NFTData{
		Picture:       s.images.Sanitize(t.Picture),
		Location:      t.Location,
		Datetime:      strconv.FormatInt(t.Datetime, 10),
		Consumed:      t.Consumed,
		OriginalOwner: t.OriginalOwner,
		CurrentOwner:  owner,
		EventName:     eventName(t.Location),
		EventType:     TicketEventType(t),
	}
}

func eventName(location string) string {
	return "Event at " + location
}
