package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"commerce/navigation/internal/config"
	"commerce/navigation/internal/domain"
	"commerce/navigation/internal/mirror"
	"commerce/navigation/internal/repository"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("catalog api unavailable")

// HealthPath is checked on every endpoint before it is used.
const HealthPath = "/healthz"

type hasProductsResponse struct {
	HasProducts bool `json:"has_products"`
}

// remoteCatalog reads the catalog from the commerce catalog HTTP API.
type remoteCatalog struct {
	rl         ratelimit.Limiter
	httpClient *resty.Client
	endpoints  mirror.Supplier

	// Circuit breaker for unreachable endpoints
	circuitBreakerMutex sync.RWMutex
	unavailableUntil    time.Time
	circuitBreakerDelay time.Duration
}

// NewRemoteCatalog returns a Catalog backed by the catalog API served at
// the endpoints of supplier.
func NewRemoteCatalog(cfg config.RemoteConfig, endpoints mirror.Supplier) repository.Catalog {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	rps := cfg.MaxRequestsPerSecond
	if rps <= 0 {
		rps = 100
	}

	return &remoteCatalog{
		rl:                  ratelimit.New(rps),
		httpClient:          client,
		endpoints:           endpoints,
		circuitBreakerDelay: time.Duration(cfg.CircuitBreakerDelay) * time.Second,
	}
}

func (c *remoteCatalog) Lookup(ctx context.Context, id int64, table domain.Table, lang string) (*domain.DataRow, error) {
	if id <= 0 {
		return nil, nil
	}
	if table != domain.TableCategories && table != domain.TableProducts {
		return nil, fmt.Errorf("unknown table %q: %w", table, repository.ErrInvalidRelation)
	}

	var row domain.DataRow
	path := fmt.Sprintf("/rows/%s/%d", url.PathEscape(table.String()), id)
	status, err := c.get(ctx, path, url.Values{"lang": {lang}}, &row)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s row %d: %w", table, id, err)
	}

	switch status {
	case http.StatusOK:
		return &row, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("failed to look up %s row %d: unexpected status %d", table, id, status)
	}
}

func (c *remoteCatalog) ChildrenOf(ctx context.Context, parentID int64, kind domain.RelationKind, sort domain.SortSpec) ([]domain.RelationRow, error) {
	order := "asc"
	if sort.Descending {
		order = "desc"
	}
	query := url.Values{"sort": {sort.Field}, "order": {order}}
	path := fmt.Sprintf("/relations/%s/%d/children", url.PathEscape(kind.String()), parentID)
	return c.relations(ctx, path, query, kind, parentID)
}

func (c *remoteCatalog) ParentsOf(ctx context.Context, childID int64, kind domain.RelationKind) ([]domain.RelationRow, error) {
	path := fmt.Sprintf("/relations/%s/%d/parents", url.PathEscape(kind.String()), childID)
	return c.relations(ctx, path, nil, kind, childID)
}

func (c *remoteCatalog) relations(ctx context.Context, path string, query url.Values, kind domain.RelationKind, id int64) ([]domain.RelationRow, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown relation %q: %w", kind, repository.ErrInvalidRelation)
	}

	var rows []domain.RelationRow
	status, err := c.get(ctx, path, query, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s relations of %d: %w", kind, id, err)
	}

	switch status {
	case http.StatusOK:
		return rows, nil
	case http.StatusNotFound:
		// the API answers 404 for relation tables it does not know
		return nil, fmt.Errorf("relation %s: %w", kind, repository.ErrInvalidRelation)
	default:
		return nil, fmt.Errorf("failed to query %s relations of %d: unexpected status %d", kind, id, status)
	}
}

func (c *remoteCatalog) HasDescendantProducts(ctx context.Context, categoryID int64) (bool, error) {
	var result hasProductsResponse
	path := fmt.Sprintf("/categories/%d/has-products", categoryID)
	status, err := c.get(ctx, path, nil, &result)
	if err != nil {
		return false, fmt.Errorf("failed to check products below category %d: %w", categoryID, err)
	}

	switch status {
	case http.StatusOK:
		return result.HasProducts, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("failed to check products below category %d: unexpected status %d", categoryID, status)
	}
}

// get requests path from the next endpoint, failing over to the others on
// transport errors and server errors. The decoded body lands in out for
// successful responses only.
func (c *remoteCatalog) get(ctx context.Context, path string, query url.Values, out any) (int, error) {
	if c.isCircuitBreakerOpen() {
		remaining := c.getRemainingCircuitBreakerTime()
		log.Debugf("🚫 Request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return 0, fmt.Errorf("%w for %v more", ErrUnavailable, remaining.Round(time.Second))
	}

	attempts := max(1, c.endpoints.Len())
	var lastErr error
	for i := 0; i < attempts; i++ {
		base := c.endpoints.Get()
		if base == "" {
			return 0, fmt.Errorf("no catalog endpoint configured: %w", ErrUnavailable)
		}

		c.rl.Take()

		req := c.httpClient.R().
			SetContext(ctx).
			SetResult(out)
		if len(query) > 0 {
			req.SetQueryParamsFromValues(query)
		}

		resp, err := req.Get(base + path)
		if err != nil {
			if ctx.Err() != nil {
				return 0, fmt.Errorf("request cancelled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("failed to fetch %s: %w", base+path, err)
			log.Warnf("⚠️ Catalog endpoint %s failed, trying next: %v", base, err)
			continue
		}

		if resp.StatusCode() >= http.StatusInternalServerError {
			lastErr = fmt.Errorf("HTTP error from %s: %s", base, resp.Status())
			log.Warnf("⚠️ Catalog endpoint %s answered %s, trying next", base, resp.Status())
			continue
		}

		return resp.StatusCode(), nil
	}

	c.triggerCircuitBreaker()
	return 0, lastErr
}

func (c *remoteCatalog) isCircuitBreakerOpen() bool {
	c.circuitBreakerMutex.RLock()
	now := time.Now()
	wasOpen := now.Before(c.unavailableUntil)
	wasTriggered := !c.unavailableUntil.IsZero()
	c.circuitBreakerMutex.RUnlock()

	if !wasOpen && wasTriggered {
		c.circuitBreakerMutex.Lock()
		// Double-check after acquiring write lock
		if !c.unavailableUntil.IsZero() && now.After(c.unavailableUntil) {
			c.unavailableUntil = time.Time{}
			log.Infof("✅ Circuit breaker closed, catalog requests are allowed again")
		}
		c.circuitBreakerMutex.Unlock()
	}

	return wasOpen
}

func (c *remoteCatalog) triggerCircuitBreaker() {
	if c.circuitBreakerDelay <= 0 {
		return
	}

	c.circuitBreakerMutex.Lock()
	defer c.circuitBreakerMutex.Unlock()

	c.unavailableUntil = time.Now().Add(c.circuitBreakerDelay)
	log.Warnf("🚫 Circuit breaker activated! Catalog requests disabled until %v",
		c.unavailableUntil.Format("15:04:05"))
}

func (c *remoteCatalog) getRemainingCircuitBreakerTime() time.Duration {
	c.circuitBreakerMutex.RLock()
	defer c.circuitBreakerMutex.RUnlock()

	remaining := time.Until(c.unavailableUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}
