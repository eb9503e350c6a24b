package monitor

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xyths/ticket-market/chain"
	"github.com/xyths/ticket-market/marketplace"
	"github.com/xyths/ticket-market/pricing"
)

// Record is one thing worth telling subscribers about a sale.
type Record struct {
	Event     string                `json:"event"`
	SaleID    uint64                `json:"saleId"`
	TokenID   uint64                `json:"tokenId"`
	Name      string                `json:"name"`
	EventType marketplace.EventType `json:"eventType"`
	Price     pricing.USD           `json:"price"` // list price, or the bid for EventBid
	Seller    string                `json:"seller"`
	Bidder    string                `json:"bidder"`
	EndTime   int64                 `json:"endTime"`

	ImagePreviewUrl string `json:"imagePreviewUrl"` // for Telegram preview

	CreatedAt time.Time `json:"createdAt"`
}

const (
	EventList  = "List"
	EventBid   = "Bid"
	EventEnded = "Ended" // expired, waiting for finalizeSale or cancelSale
)

// Key identifies a record for de-duplication. A new highest bid is a new key.
func (r *Record) Key() string {
	switch r.Event {
	case EventBid:
		return fmt.Sprintf("bid:%d:%s", r.SaleID, r.Price)
	case EventEnded:
		return "ended:" + strconv.FormatUint(r.SaleID, 10)
	default:
		return "list:" + strconv.FormatUint(r.SaleID, 10)
	}
}

// toRecords derives the records one active sale implies at now.
func toRecords(e *marketplace.SaleEntry, now time.Time) []Record {
	base := Record{
		SaleID:          e.SaleID,
		TokenID:         e.Sale.TokenID,
		Name:            e.NFTData.EventName,
		EventType:       e.NFTData.EventType,
		Price:           pricing.NewUSD(e.Sale.ListPriceUSD),
		Seller:          chain.Lower(e.Sale.Seller),
		EndTime:         e.Sale.EndTime,
		ImagePreviewUrl: e.NFTData.Picture,
		CreatedAt:       now,
	}
	list := base
	list.Event = EventList
	records := []Record{list}

	if !marketplace.HasNoBids(&e.Sale) {
		bid := base
		bid.Event = EventBid
		bid.Price = pricing.NewUSD(e.Sale.CurrentBidUSD)
		bid.Bidder = chain.Lower(e.Sale.CurrentBidder)
		records = append(records, bid)
	}
	if marketplace.Expired(&e.Sale, now) {
		ended := base
		ended.Event = EventEnded
		if !marketplace.HasNoBids(&e.Sale) {
			ended.Price = pricing.NewUSD(e.Sale.CurrentBidUSD)
			ended.Bidder = chain.Lower(e.Sale.CurrentBidder)
		}
		records = append(records, ended)
	}
	return records
}
