package marketplace

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/xyths/ticket-market/chain"
)

const (
	ClaimTypeClaim   = "claim"
	ClaimTypeReclaim = "reclaim"
)

// ClaimAction is the settlement a wallet may submit for an expired auction:
// Finalize for the winning bidder, Cancel for a seller nobody bid on.
type ClaimAction interface {
	SaleID() uint64
	// Method is the marketplace function that performs the claim.
	Method() string
	ClaimType() string
	isClaimAction()
}

type Finalize struct{ Sale uint64 }

func (f Finalize) SaleID() uint64  { return f.Sale }
func (Finalize) Method() string    { return "finalizeSale" }
func (Finalize) ClaimType() string { return ClaimTypeClaim }
func (Finalize) isClaimAction()    {}

type Cancel struct{ Sale uint64 }

func (c Cancel) SaleID() uint64  { return c.Sale }
func (Cancel) Method() string    { return "cancelSale" }
func (Cancel) ClaimType() string { return ClaimTypeReclaim }
func (Cancel) isClaimAction()    {}

// HasNoBids treats a zero bid and a zero bidder as the same evidence.
func HasNoBids(s *chain.Sale) bool {
	return s.CurrentBidUSD == nil || s.CurrentBidUSD.Sign() == 0 || s.CurrentBidder == chain.ZeroAddress
}

func Expired(s *chain.Sale, now time.Time) bool {
	return s.EndTime <= now.Unix()
}

// Classify decides which claim, if any, wallet can make on an active expired sale.
func Classify(saleID uint64, s *chain.Sale, wallet string, now time.Time) (ClaimAction, bool) {
	if !s.Active || !Expired(s, now) {
		return nil, false
	}
	w := strings.ToLower(strings.TrimSpace(wallet))
	noBids := HasNoBids(s)
	switch {
	case noBids && w == chain.Lower(s.Seller):
		return Cancel{Sale: saleID}, true
	case !noBids && w == chain.Lower(s.CurrentBidder):
		return Finalize{Sale: saleID}, true
	}
	return nil, false
}

type ClaimableAuction struct {
	SaleEntry
	Action ClaimAction
}

type claimActionJSON struct {
	Method string   `json:"functionName"`
	Args   []string `json:"args"`
}

func (c ClaimableAuction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		SaleEntry
		ClaimType string          `json:"claimType"`
		Action    claimActionJSON `json:"action"`
	}{
		SaleEntry: c.SaleEntry,
		ClaimType: c.Action.ClaimType(),
		Action: claimActionJSON{
			Method: c.Action.Method(),
			Args:   []string{strconv.FormatUint(c.Action.SaleID(), 10)},
		},
	})
}

// ListClaimable returns the expired auctions wallet can settle. It only
// reports eligibility; nothing is submitted.
func (s *Scanner) ListClaimable(ctx context.Context, wallet string) ([]ClaimableAuction, error) {
	total, err := s.saleCount(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return scan[*chain.Sale, ClaimableAuction]{
		name:  "claimable",
		fetch: s.gw.GetSale,
		keep: func(id uint64, sale *chain.Sale) bool {
			_, ok := Classify(id, sale, wallet, now)
			return ok
		},
		project: func(ctx context.Context, id uint64, sale *chain.Sale) (ClaimableAuction, error) {
			action, _ := Classify(id, sale, wallet, now)
			e, err := s.saleEntry(ctx, id, sale)
			if err != nil {
				return ClaimableAuction{}, err
			}
			return ClaimableAuction{SaleEntry: e, Action: action}, nil
		},
	}.run(ctx, s.Sugar, total)
}
