// Package api serves marketplace reads and mint uploads over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xyths/ticket-market/chain"
	"github.com/xyths/ticket-market/marketplace"
	"github.com/xyths/ticket-market/metadata"
	"github.com/xyths/ticket-market/pricing"
)

// Market is the read side the handlers need; *marketplace.Scanner has it.
type Market interface {
	ListActiveSales(ctx context.Context) ([]marketplace.SaleEntry, error)
	GetSale(ctx context.Context, saleID uint64) (*marketplace.SaleEntry, error)
	ListClaimable(ctx context.Context, wallet string) ([]marketplace.ClaimableAuction, error)
	ListTickets(ctx context.Context) ([]marketplace.TicketView, error)
	TicketsOwnedBy(ctx context.Context, wallet string) ([]marketplace.TicketView, error)
	TicketsOriginallyBy(ctx context.Context, wallet string) ([]marketplace.TicketView, error)
	GetTicket(ctx context.Context, tokenID uint64) (*marketplace.TicketDetail, error)
	IsApproved(ctx context.Context, tokenID uint64, operator string) (bool, error)
	State(ctx context.Context, tokenID uint64) (*marketplace.TicketState, error)
}

type PriceSource interface {
	ETHPrice(ctx context.Context) pricing.Quote
}

type Handler struct {
	Market   Market
	Planner  *marketplace.Planner
	Builder  *metadata.Builder
	Metadata metadata.Store
	Price    PriceSource
	Now      func() time.Time

	Sugar *zap.SugaredLogger
}

func (h *Handler) Register(r *gin.Engine) {
	nfts := r.Group("/api/nfts")
	nfts.GET("", h.listNFTs)
	nfts.GET("/:tokenId", h.getNFT)
	nfts.GET("/:tokenId/approval-status", h.approvalStatus)
	nfts.GET("/:tokenId/actions", h.nftActions)

	sales := r.Group("/api/marketplace")
	sales.GET("/sales", h.listSales)
	sales.GET("/sales/:saleId", h.getSale)
	sales.GET("/sales/:saleId/actions", h.saleActions)
	sales.GET("/claimable/:address", h.listClaimable)

	users := r.Group("/api/users")
	users.GET("/:walletAddress/nfts", h.ownedNFTs)
	users.GET("/:walletAddress/original-nfts", h.originalNFTs)

	r.POST("/api/upload-metadata", h.uploadMetadata)
	r.GET("/api/metadata/:key", h.getMetadata)
	r.GET("/api/price/eth", h.ethPrice)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// fail answers 404 for missing records and 500 for everything else. An
// unreadable chain is never a missing record.
func (h *Handler) fail(c *gin.Context, err error, notFound, failed string) {
	switch {
	case errors.Is(err, marketplace.ErrUnavailable):
		h.Sugar.Errorf("%s %s error: %s", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": failed})
	case errors.Is(err, chain.ErrNotFound),
		errors.Is(err, marketplace.ErrNoActiveSale),
		errors.Is(err, metadata.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	default:
		h.Sugar.Errorf("%s %s error: %s", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": failed})
	}
}

// positiveID parses a path id; ids start at 1.
func positiveID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	return id, err == nil && id > 0
}

func addressParam(s string) (string, bool) {
	return chain.NormalizeAddress(s)
}

// eventTypeFilter reads ?eventType=. ok is false for an unknown type.
func eventTypeFilter(c *gin.Context) (marketplace.EventType, bool) {
	raw := c.Query("eventType")
	if raw == "" {
		return "", true
	}
	return marketplace.ParseEventType(raw)
}

func filterTickets(views []marketplace.TicketView, et marketplace.EventType) []marketplace.TicketView {
	if et == "" {
		return views
	}
	out := make([]marketplace.TicketView, 0, len(views))
	for _, v := range views {
		if v.EventType == et {
			out = append(out, v)
		}
	}
	return out
}
