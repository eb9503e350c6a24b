package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xyths/ticket-market/marketplace"
	"github.com/xyths/ticket-market/pricing"
)

func (h *Handler) listNFTs(c *gin.Context) {
	et, ok := eventTypeFilter(c)
	if !ok {
		badRequest(c, "Invalid event type")
		return
	}
	views, err := h.Market.ListTickets(c.Request.Context())
	if err != nil {
		h.fail(c, err, "NFTs not found", "Failed to fetch NFTs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"nfts": filterTickets(views, et)})
}

func (h *Handler) getNFT(c *gin.Context) {
	tokenID, ok := positiveID(c, "tokenId")
	if !ok {
		badRequest(c, "Invalid token ID")
		return
	}
	d, err := h.Market.GetTicket(c.Request.Context(), tokenID)
	if err != nil {
		h.fail(c, err, "NFT not found", "Failed to fetch NFT")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) approvalStatus(c *gin.Context) {
	owner, market := c.Query("owner"), c.Query("marketplace")
	if owner == "" || market == "" {
		badRequest(c, "Missing owner or marketplace address")
		return
	}
	if _, ok := addressParam(owner); !ok {
		badRequest(c, "Invalid owner address")
		return
	}
	operator, ok := addressParam(market)
	if !ok {
		badRequest(c, "Invalid marketplace address")
		return
	}
	tokenID, ok := positiveID(c, "tokenId")
	if !ok {
		badRequest(c, "Invalid token ID")
		return
	}
	approved, err := h.Market.IsApproved(c.Request.Context(), tokenID, operator)
	if err != nil {
		h.fail(c, err, "NFT not found", "Failed to check approval status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"isApproved": approved})
}

type ticketTransactions struct {
	TokenID      string                    `json:"tokenId"`
	CanList      bool                      `json:"canList"`
	Transactions []marketplace.Transaction `json:"transactions"`
}

// nftActions lists approve, consume and, given prices and a duration,
// listNFT. Approval comes first since listing needs it.
func (h *Handler) nftActions(c *gin.Context) {
	tokenID, ok := positiveID(c, "tokenId")
	if !ok {
		badRequest(c, "Invalid token ID")
		return
	}
	wallet, ok := addressParam(c.Query("wallet"))
	if !ok {
		badRequest(c, "Invalid wallet address")
		return
	}
	listing, err := listingQuery(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	st, err := h.Market.State(c.Request.Context(), tokenID)
	if err != nil {
		h.fail(c, err, "NFT not found", "Failed to fetch NFT")
		return
	}
	txs, err := h.Planner.TicketActions(st, wallet)
	if err != nil {
		h.fail(c, err, "NFT not found", "Failed to build transactions")
		return
	}
	canList := h.Planner.CanList(st, wallet)
	if canList && listing != nil {
		tx, err := h.Planner.Listing(tokenID, listing.start, listing.buyNow, listing.hours)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		txs = append(txs, tx)
	}
	c.JSON(http.StatusOK, ticketTransactions{
		TokenID:      strconv.FormatUint(tokenID, 10),
		CanList:      canList,
		Transactions: txs,
	})
}

var errListingParams = errors.New("startingPrice, buyNowPrice and durationHours must be given together")

type listingParams struct {
	start, buyNow pricing.USD
	hours         int
}

// listingQuery reads startingPrice, buyNowPrice and durationHours. All three
// or none must be given.
func listingQuery(c *gin.Context) (*listingParams, error) {
	start, buyNow, hours := c.Query("startingPrice"), c.Query("buyNowPrice"), c.Query("durationHours")
	if start == "" && buyNow == "" && hours == "" {
		return nil, nil
	}
	if start == "" || buyNow == "" || hours == "" {
		return nil, errListingParams
	}
	var (
		p   listingParams
		err error
	)
	if p.start, err = pricing.ParseUSD(start); err != nil {
		return nil, err
	}
	if p.buyNow, err = pricing.ParseUSD(buyNow); err != nil {
		return nil, err
	}
	if p.hours, err = strconv.Atoi(hours); err != nil {
		return nil, errListingParams
	}
	if err = marketplace.CheckListing(p.start, p.buyNow, p.hours); err != nil {
		return nil, err
	}
	return &p, nil
}
