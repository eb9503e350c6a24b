package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/xyths/ticket-market/chain"
	"github.com/xyths/ticket-market/pricing"
)

// TicketView is a token as listed to wallets.
type TicketView struct {
	ID          string    `json:"id"`
	TokenID     string    `json:"tokenId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Owner       string    `json:"owner"`
	Creator     string    `json:"creator"`
	Consumed    bool      `json:"consumed"`
	Location    string    `json:"location"`
	Datetime    int64     `json:"datetime"`
	EventType   EventType `json:"eventType"`
}

// TicketDetail is a token with its active sale, if it has one.
type TicketDetail struct {
	TicketView
	Sale *TicketSale `json:"sale,omitempty"`
}

type TicketSale struct {
	ID            string         `json:"id"`
	StartingPrice pricing.USD    `json:"startingPrice"`
	BuyNowPrice   pricing.USD    `json:"buyNowPrice"`
	CurrentBid    pricing.USD    `json:"currentBid"`
	CurrentBidder common.Address `json:"currentBidder"`
	Seller        common.Address `json:"seller"`
	EndTime       int64          `json:"endTime"`
	Active        bool           `json:"active"`
}

// TicketState is what decides which ticket transactions a wallet is offered.
type TicketState struct {
	TokenID       uint64
	Owner         common.Address
	OriginalOwner common.Address
	Consumed      bool
	Approved      common.Address
	OnSale        bool
}

type token struct {
	ticket *chain.Ticket
	owner  common.Address
}

// fetchToken reads getNFTData and ownerOf for one id concurrently.
func (s *Scanner) fetchToken(ctx context.Context, id uint64) (token, error) {
	var t token
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t.ticket, err = s.gw.GetNFTData(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		t.owner, err = s.gw.OwnerOf(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return token{}, err
	}
	return t, nil
}

func (s *Scanner) tickets(ctx context.Context, name string, keep func(token) bool) ([]TicketView, error) {
	total, err := s.tokenCount(ctx)
	if err != nil {
		return nil, err
	}
	return scan[token, TicketView]{
		name:  name,
		fetch: s.fetchToken,
		keep:  func(_ uint64, t token) bool { return keep(t) },
		project: func(_ context.Context, _ uint64, t token) (TicketView, error) {
			return s.ticketView(t), nil
		},
	}.run(ctx, s.Sugar, total)
}

// ListTickets returns every minted token in token id order.
func (s *Scanner) ListTickets(ctx context.Context) ([]TicketView, error) {
	return s.tickets(ctx, "tickets", func(token) bool { return true })
}

// TicketsOwnedBy returns the tokens wallet holds now.
func (s *Scanner) TicketsOwnedBy(ctx context.Context, wallet string) ([]TicketView, error) {
	w := strings.ToLower(strings.TrimSpace(wallet))
	return s.tickets(ctx, "owned_tickets", func(t token) bool {
		return chain.Lower(t.owner) == w
	})
}

// TicketsOriginallyBy returns the tokens wallet minted, wherever they are now.
func (s *Scanner) TicketsOriginallyBy(ctx context.Context, wallet string) ([]TicketView, error) {
	w := strings.ToLower(strings.TrimSpace(wallet))
	return s.tickets(ctx, "original_tickets", func(t token) bool {
		return chain.Lower(t.ticket.OriginalOwner) == w
	})
}

// GetTicket returns one token with its active sale. A failed sale lookup
// leaves the sale out instead of failing the ticket.
func (s *Scanner) GetTicket(ctx context.Context, tokenID uint64) (*TicketDetail, error) {
	t, err := s.fetchToken(ctx, tokenID)
	if err != nil {
		return nil, lookupErr(fmt.Sprintf("token %d", tokenID), err)
	}
	d := &TicketDetail{TicketView: s.ticketView(t)}
	entry, err := s.GetSaleForToken(ctx, tokenID)
	switch {
	case err == nil:
		d.Sale = ticketSale(entry)
	case errors.Is(err, ErrNoActiveSale):
	default:
		s.Sugar.Errorf("sale lookup for token %d error: %s", tokenID, err)
	}
	return d, nil
}

// IsApproved reports whether operator may transfer tokenID.
func (s *Scanner) IsApproved(ctx context.Context, tokenID uint64, operator string) (bool, error) {
	approved, err := s.gw.GetApproved(ctx, tokenID)
	if err != nil {
		return false, lookupErr(fmt.Sprintf("getApproved %d", tokenID), err)
	}
	return chain.Lower(approved) == strings.ToLower(strings.TrimSpace(operator)), nil
}

// State collects ownership, approval and listing of one token.
func (s *Scanner) State(ctx context.Context, tokenID uint64) (*TicketState, error) {
	t, err := s.fetchToken(ctx, tokenID)
	if err != nil {
		return nil, lookupErr(fmt.Sprintf("token %d", tokenID), err)
	}
	approved, err := s.gw.GetApproved(ctx, tokenID)
	if err != nil {
		return nil, lookupErr(fmt.Sprintf("getApproved %d", tokenID), err)
	}
	st := &TicketState{
		TokenID:       tokenID,
		Owner:         t.owner,
		OriginalOwner: t.ticket.OriginalOwner,
		Consumed:      t.ticket.Consumed,
		Approved:      approved,
	}
	_, err = s.GetSaleForToken(ctx, tokenID)
	switch {
	case err == nil:
		st.OnSale = true
	case errors.Is(err, ErrNoActiveSale):
	default:
		return nil, err
	}
	return st, nil
}

func (s *Scanner) ticketView(t token) TicketView {
	id := strconv.FormatUint(t.ticket.TokenID, 10)
	return TicketView{
		ID:          id,
		TokenID:     id,
		Name:        eventName(t.ticket.Location),
		Description: description(t.ticket),
		Image:       s.images.Sanitize(t.ticket.Picture),
		Owner:       chain.Lower(t.owner),
		Creator:     chain.Lower(t.ticket.OriginalOwner),
		Consumed:    t.ticket.Consumed,
		Location:    t.ticket.Location,
		Datetime:    t.ticket.Datetime,
		EventType:   TicketEventType(t.ticket),
	}
}

func description(t *chain.Ticket) string {
	date := time.Unix(t.Datetime, 0).UTC().Format("Jan 2, 2006")
	return fmt.Sprintf("Event ticket for %s - %s", t.Location, date)
}

func ticketSale(e *SaleEntry) *TicketSale {
	return &TicketSale{
		ID:            strconv.FormatUint(e.SaleID, 10),
		StartingPrice: pricing.NewUSD(e.Sale.ListPriceUSD),
		BuyNowPrice:   pricing.NewUSD(e.Sale.BuyNowPriceUSD),
		CurrentBid:    pricing.NewUSD(e.Sale.CurrentBidUSD),
		CurrentBidder: e.Sale.CurrentBidder,
		Seller:        e.Sale.Seller,
		EndTime:       e.Sale.EndTime,
		Active:        e.Sale.Active,
	}
}
