package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"commerce/navigation/internal/domain"
	"commerce/navigation/internal/domain/event"
	"commerce/navigation/internal/navigation"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	headerVisitorGroups = "X-Visitor-Groups"
	headerSessionID     = "X-Session-ID"
)

// Navigator renders menus.
type Navigator interface {
	Navigation(ctx context.Context, req navigation.Request) (domain.Tree, error)
	Rootline(ctx context.Context, req navigation.Request) ([]domain.RootlineEntry, error)
	Invalidate(ctx context.Context) error
	Options() navigation.Options
}

// Publisher appends catalog change events to the invalidation stream.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) (string, error)
}

type Handler struct {
	nav    Navigator
	events Publisher
}

// NewHandler wires the handlers. events may be nil when no change stream
// is configured.
func NewHandler(nav Navigator, events Publisher) *Handler {
	return &Handler{nav: nav, events: events}
}

type eventRequest struct {
	Type string          `json:"type" binding:"required"`
	Data json.RawMessage `json:"data" binding:"required"`
}

// GetNavigation renders the menu tree. Failures are logged and answered
// with the placeholder tree so a page can still render.
func (h *Handler) GetNavigation(c *gin.Context) {
	req, err := parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tree, err := h.nav.Navigation(c.Request.Context(), req)
	if err != nil {
		log.Errorf("❌ Failed to render navigation: %v", err)
		c.JSON(http.StatusOK, navigation.ErrorTree(h.nav.Options().ErrorNodes))
		return
	}

	c.JSON(http.StatusOK, tree)
}

func (h *Handler) GetRootline(c *gin.Context) {
	req, err := parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.nav.Rootline(c.Request.Context(), req)
	if err != nil {
		log.Errorf("❌ Failed to render rootline: %v", err)
		c.JSON(http.StatusOK, gin.H{"entries": []domain.RootlineEntry{}})
		return
	}
	if entries == nil {
		entries = []domain.RootlineEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) PostEvent(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "change stream not configured"})
		return
	}

	var body eventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	e, err := event.Decode(body.Type, body.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := e.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.events.Publish(c.Request.Context(), e)
	if err != nil {
		log.Errorf("❌ Failed to publish %s: %v", body.Type, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to publish event"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message_id": id})
}

func (h *Handler) DeleteCache(c *gin.Context) {
	if err := h.nav.Invalidate(c.Request.Context()); err != nil {
		log.Errorf("❌ Failed to invalidate navigation cache: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to invalidate cache"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseRequest(c *gin.Context) (navigation.Request, error) {
	var req navigation.Request
	var err error

	if req.CategoryID, err = int64Query(c, "catUid"); err != nil {
		return req, err
	}
	if req.ProductID, err = int64Query(c, "showUid"); err != nil {
		return req, err
	}
	if req.Manufacturer, err = int64Query(c, "manufacturer"); err != nil {
		return req, err
	}
	depth, err := int64Query(c, "mDepth")
	if err != nil {
		return req, err
	}
	req.Depth = int(depth)
	req.Path = strings.TrimSpace(c.Query("path"))

	req.Visitor = domain.VisitorContext{
		Groups:    splitList(c.GetHeader(headerVisitorGroups)),
		Host:      c.Request.Host,
		Language:  strings.TrimSpace(c.Query("L")),
		NoCache:   isTrue(c.Query("no_cache")),
		SessionID: strings.TrimSpace(c.GetHeader(headerSessionID)),
	}

	return req, nil
}

func int64Query(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, &paramError{name: name, value: raw}
	}
	return v, nil
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " " + strconv.Quote(e.value)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTrue(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
