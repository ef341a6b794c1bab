package mirror

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"resty.dev/v3"
)

const (
	healthTimeout     = 5 * time.Second
	healthConcurrency = 16
)

// Supplier hands out catalog API base URLs in round-robin order.
type Supplier interface {
	Get() string
	Len() int
}

type supplier struct {
	endpoints []string
	current   int
	mutex     sync.Mutex
}

// NewStaticSupplier rotates over endpoints without probing them.
func NewStaticSupplier(endpoints ...string) Supplier {
	return &supplier{endpoints: normalize(endpoints)}
}

// NewSupplier checks every endpoint's health path in parallel and keeps
// the ones that answer. When none answers all endpoints are kept, so a
// catalog that comes up later is still reached.
func NewSupplier(ctx context.Context, endpoints []string, healthPath string) Supplier {
	endpoints = normalize(endpoints)
	if len(endpoints) == 0 {
		return &supplier{}
	}

	log.Infof("🔄 Probing %d catalog endpoints in parallel...", len(endpoints))

	healthy := make([]bool, len(endpoints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(healthConcurrency)
	for i, endpoint := range endpoints {
		g.Go(func() error {
			healthy[i] = isEndpointHealthy(gctx, endpoint+healthPath)
			if healthy[i] {
				log.Infof("✅ Catalog endpoint %s is working", endpoint)
			} else {
				log.Infof("❌ Catalog endpoint %s is not working, skipping", endpoint)
			}
			return nil
		})
	}
	_ = g.Wait()

	valid := make([]string, 0, len(endpoints))
	for i, endpoint := range endpoints {
		if healthy[i] {
			valid = append(valid, endpoint)
		}
	}

	if len(valid) == 0 {
		log.Warnf("⚠️ No catalog endpoint answered, keeping all %d", len(endpoints))
		return &supplier{endpoints: endpoints}
	}

	log.Infof("✅ Endpoint supplier initialized with %d working endpoints out of %d tested", len(valid), len(endpoints))
	return &supplier{endpoints: valid}
}

// Get returns the next endpoint, or "" when there is none.
func (s *supplier) Get() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.endpoints) == 0 {
		return ""
	}

	endpoint := s.endpoints[s.current]
	s.current = (s.current + 1) % len(s.endpoints)
	return endpoint
}

func (s *supplier) Len() int {
	return len(s.endpoints)
}

func isEndpointHealthy(ctx context.Context, url string) bool {
	client := resty.New().
		SetTimeout(healthTimeout).
		SetRetryCount(0)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		log.Debugf("Endpoint health check failed for %s: %v", url, err)
		return false
	}
	if resp.IsError() {
		log.Debugf("Endpoint health check failed for %s with status: %s", url, resp.Status())
		return false
	}
	return true
}

func normalize(endpoints []string) []string {
	seen := make(map[string]struct{}, len(endpoints))
	out := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		e = strings.TrimRight(strings.TrimSpace(e), "/")
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
