package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xyths/ticket-market/marketplace"
	"github.com/xyths/ticket-market/pricing"
)

func (h *Handler) listSales(c *gin.Context) {
	et, ok := eventTypeFilter(c)
	if !ok {
		badRequest(c, "Invalid event type")
		return
	}
	sales, err := h.Market.ListActiveSales(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Sales not found", "Failed to fetch sales")
		return
	}
	if et != "" {
		kept := make([]marketplace.SaleEntry, 0, len(sales))
		for _, s := range sales {
			if s.NFTData.EventType == et {
				kept = append(kept, s)
			}
		}
		sales = kept
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (h *Handler) getSale(c *gin.Context) {
	saleID, ok := positiveID(c, "saleId")
	if !ok {
		badRequest(c, "Invalid sale ID")
		return
	}
	e, err := h.Market.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.fail(c, err, "Sale not found", "Failed to fetch sale")
		return
	}
	c.JSON(http.StatusOK, e)
}

type saleTransactions struct {
	SaleID       string                    `json:"saleId"`
	Transactions []marketplace.Transaction `json:"transactions"`
}

func (h *Handler) saleActions(c *gin.Context) {
	saleID, ok := positiveID(c, "saleId")
	if !ok {
		badRequest(c, "Invalid sale ID")
		return
	}
	wallet, ok := addressParam(c.Query("wallet"))
	if !ok {
		badRequest(c, "Invalid wallet address")
		return
	}
	e, err := h.Market.GetSale(c.Request.Context(), saleID)
	if err != nil {
		h.fail(c, err, "Sale not found", "Failed to fetch sale")
		return
	}
	var quote *pricing.Quote
	if h.Price != nil {
		q := h.Price.ETHPrice(c.Request.Context())
		quote = &q
	}
	txs, err := h.Planner.SaleActions(e, wallet, h.now(), quote)
	if err != nil {
		h.fail(c, err, "Sale not found", "Failed to build transactions")
		return
	}
	c.JSON(http.StatusOK, saleTransactions{
		SaleID:       strconv.FormatUint(saleID, 10),
		Transactions: txs,
	})
}

func (h *Handler) listClaimable(c *gin.Context) {
	wallet, ok := addressParam(c.Param("address"))
	if !ok {
		badRequest(c, "Invalid wallet address")
		return
	}
	auctions, err := h.Market.ListClaimable(c.Request.Context(), wallet)
	if err != nil {
		h.fail(c, err, "Auctions not found", "Failed to fetch claimable auctions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"claimableAuctions": auctions})
}

func (h *Handler) ownedNFTs(c *gin.Context) {
	h.walletNFTs(c, h.Market.TicketsOwnedBy)
}

func (h *Handler) originalNFTs(c *gin.Context) {
	h.walletNFTs(c, h.Market.TicketsOriginallyBy)
}

func (h *Handler) walletNFTs(c *gin.Context, list func(ctx context.Context, wallet string) ([]marketplace.TicketView, error)) {
	wallet, ok := addressParam(c.Param("walletAddress"))
	if !ok {
		badRequest(c, "Invalid wallet address")
		return
	}
	et, ok := eventTypeFilter(c)
	if !ok {
		badRequest(c, "Invalid event type")
		return
	}
	views, err := list(c.Request.Context(), wallet)
	if err != nil {
		h.fail(c, err, "NFTs not found", "Failed to fetch user NFTs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"nfts": filterTickets(views, et)})
}

func (h *Handler) ethPrice(c *gin.Context) {
	if h.Price == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Price feed not configured"})
		return
	}
	c.JSON(http.StatusOK, h.Price.ETHPrice(c.Request.Context()))
}
