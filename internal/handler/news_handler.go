package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aashrilshazar/WorldSalesMap/internal/newsjob"
)

type NewsService interface {
	Refresh(ctx context.Context, force bool) (*newsjob.Response, error)
	Cancel(ctx context.Context) (*newsjob.Response, error)
	Clear(ctx context.Context) (*newsjob.Response, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type NewsHandler struct {
	service NewsService
	store   Pinger
}

func NewNewsHandler(service NewsService, store Pinger) *NewsHandler {
	return &NewsHandler{service: service, store: store}
}

// GetNews serves the snapshot. The clear, cancel and refresh flags are
// checked in that order and only the first one set is acted on.
func (h *NewsHandler) GetNews(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		res    *newsjob.Response
		err    error
		action string
	)
	switch {
	case queryFlag(c, "clear"):
		action = "clear"
		res, err = h.service.Clear(ctx)
	case queryFlag(c, "cancel"):
		action = "cancel"
		res, err = h.service.Cancel(ctx)
	default:
		action = "read"
		force := queryFlag(c, "refresh")
		if force {
			action = "refresh"
		}
		res, err = h.service.Refresh(ctx, force)
	}

	if err != nil {
		slog.Error("error handling news request", "action", action, "error", err)
		if errors.Is(err, newsjob.ErrNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch news snapshot"})
		return
	}

	if strings.EqualFold(c.Query("format"), "csv") {
		c.Header("Content-Disposition", `attachment; filename="news.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(RenderCSV(res.Items)))
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *NewsHandler) GetHealth(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		slog.Error("redis ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"redis":  "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"redis":  "connected",
	})
}

func (h *NewsHandler) MethodNotAllowed(c *gin.Context) {
	c.Header("Allow", http.MethodGet)
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method Not Allowed"})
}

func queryFlag(c *gin.Context, name string) bool {
	v := strings.ToLower(strings.TrimSpace(c.Query(name)))
	return v == "1" || v == "true"
}
