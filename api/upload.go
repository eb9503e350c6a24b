package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xyths/ticket-market/marketplace"
	"github.com/xyths/ticket-market/metadata"
)

type uploadRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
	ImageURL    string `json:"imageUrl" form:"imageUrl"`
	Location    string `json:"location" form:"location"`
	EventDate   string `json:"eventDate" form:"eventDate"`
	EventTime   string `json:"eventTime" form:"eventTime"`
	EventType   string `json:"eventType" form:"eventType"`
}

type uploadResponse struct {
	*metadata.Result
	// Mint is offered once the upload carries a location and an event date.
	Mint *marketplace.Transaction `json:"mint,omitempty"`
}

// uploadMetadata takes a multipart form with an image file, or a JSON or
// form body with imageUrl.
func (h *Handler) uploadMetadata(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Malformed upload")
		return
	}
	u := metadata.Upload{
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Location:    req.Location,
		EventDate:   req.EventDate,
		EventTime:   req.EventTime,
		EventType:   req.EventType,
	}
	if req.EventType != "" {
		if _, ok := marketplace.ParseEventType(req.EventType); !ok {
			badRequest(c, "Invalid event type")
			return
		}
	}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		image, err := h.formImage(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		u.Image = image
	}

	res, err := h.Builder.Build(c.Request.Context(), u)
	if errors.Is(err, metadata.ErrInvalid) {
		badRequest(c, err.Error())
		return
	} else if err != nil {
		h.fail(c, err, "Metadata not found", "Failed to upload metadata")
		return
	}
	resp := uploadResponse{Result: res}
	if strings.TrimSpace(req.Location) != "" && res.Datetime > 0 {
		tx, err := h.Planner.Mint(res.PictureURL, strings.TrimSpace(req.Location), res.Datetime)
		if err != nil {
			h.fail(c, err, "Metadata not found", "Failed to build mint transaction")
			return
		}
		resp.Mint = &tx
	}
	c.JSON(http.StatusOK, resp)
}

// formImage reads the optional "image" file of a multipart upload.
func (h *Handler) formImage(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	} else if err != nil {
		return nil, errors.New("malformed image upload")
	}
	limit := h.Builder.MaxImageBytes()
	if fh.Size > limit {
		return nil, fmt.Errorf("image larger than %d bytes", limit)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

func (h *Handler) getMetadata(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		badRequest(c, "Invalid metadata key")
		return
	}
	m, err := h.Metadata.Get(c.Request.Context(), key)
	if err != nil {
		h.fail(c, err, "Metadata not found", "Failed to fetch metadata")
		return
	}
	c.JSON(http.StatusOK, m)
}
