package router

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"

	xhttp "github.com/jsildura/cloudstream-sub000/internal/http"
	"github.com/jsildura/cloudstream-sub000/internal/model"
	"github.com/jsildura/cloudstream-sub000/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// minAttempts is the floor on attempts per Execute call.
const minAttempts = 3

// Getter is the transport the router drives.
type Getter interface {
	Get(ctx context.Context, url string, header http.Header) (*xhttp.Response, error)
}

// Config holds router options.
type Config struct {
	Targets []model.Target

	// ProxyURL is the passthrough endpoint, e.g. "http://localhost:8080/api/proxy".
	ProxyURL string

	// UseProxy enables the proxy for targets flagged RequiresProxy.
	UseProxy bool

	// FailoverOnRateLimit treats 429 as an ordinary HTTP error instead of
	// returning it immediately.
	FailoverOnRateLimit bool

	// Rand returns a value in [0,1). Defaults to math/rand/v2.Float64.
	Rand func() float64
}

// Request is a logical GET against one of the configured targets.
type Request struct {
	// URL must live under one of the targets' base URLs.
	URL    string
	Header http.Header
}

// Options tune a single Execute call.
type Options struct {
	// Validator rejects structurally valid responses, e.g. preview-only assets.
	Validator func(*Response) bool

	// FailoverOnRateLimit overrides Config.FailoverOnRateLimit for this call.
	FailoverOnRateLimit bool

	// PreferredQuality is the tier the caller asked for. When a fallback
	// target belongs to a different category than the first one tried, a
	// lower quality parameter is raised to it.
	PreferredQuality model.Quality
}

// Response is the answer of one target.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
	Target     string
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Router selects, rewrites and fails over across mirror targets.
type Router struct {
	client Getter
	logger *zap.Logger
	rnd    func() float64

	proxyURL            string
	useProxy            bool
	failoverOnRateLimit bool

	mu       sync.Mutex
	targets  []model.Target
	table    *weightedTable
	tableKey string
	group    singleflight.Group
}

// New creates a Router. The target list is validated lazily on first use.
func New(cfg Config, client Getter, log *zap.Logger) *Router {
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	targets := make([]model.Target, len(cfg.Targets))
	copy(targets, cfg.Targets)
	return &Router{
		client:              client,
		logger:              logger.OrNop(log).Named("router"),
		rnd:                 rnd,
		proxyURL:            cfg.ProxyURL,
		useProxy:            cfg.UseProxy,
		failoverOnRateLimit: cfg.FailoverOnRateLimit,
		targets:             targets,
	}
}

// SetTargets replaces the target list. The weighted table is rebuilt on the
// next selection.
func (r *Router) SetTargets(targets []model.Target) {
	cp := make([]model.Target, len(targets))
	copy(cp, targets)
	r.mu.Lock()
	r.targets = cp
	r.mu.Unlock()
}

// Targets returns a copy of the configured targets.
func (r *Router) Targets() []model.Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]model.Target, len(r.targets))
	copy(cp, r.targets)
	return cp
}

// weighted returns the cached table, building it once per target list.
// Concurrent first callers share one build.
func (r *Router) weighted() (*weightedTable, error) {
	r.mu.Lock()
	targets := r.targets
	key := fingerprint(targets)
	if r.table != nil && r.tableKey == key {
		t := r.table
		r.mu.Unlock()
		return t, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (any, error) {
		t, err := buildTable(targets)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.table, r.tableKey = t, key
		r.mu.Unlock()
		r.logger.Debug("weighted table built", zap.Int("targets", len(t.entries)), zap.Int("total_weight", t.total))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*weightedTable), nil
}

// Select draws a weighted-random target.
func (r *Router) Select() (model.Target, error) {
	t, err := r.weighted()
	if err != nil {
		return model.Target{}, err
	}
	return t.pick(r.rnd()), nil
}

// Primary returns the highest-weight valid target.
func (r *Router) Primary() (model.Target, error) {
	t, err := r.weighted()
	if err != nil {
		return model.Target{}, err
	}
	return t.primary(), nil
}

// Endpoint builds an absolute URL for path on the primary target.
func (r *Router) Endpoint(path string, query url.Values) string {
	base := ""
	if p, err := r.Primary(); err == nil {
		base = strings.TrimSuffix(p.BaseURL, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(query) == 0 {
		return base + path
	}
	return base + path + "?" + query.Encode()
}

// BuildAttemptOrder returns the targets to try for rawURL, first choice first.
func (r *Router) BuildAttemptOrder(rawURL string) ([]model.Target, error) {
	t, err := r.weighted()
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("attempt order: %w", err)
	}

	var first model.Target
	if isCanonicalLookup(u) {
		first = t.primary()
	} else {
		first = t.pick(r.rnd())
	}

	order := []model.Target{first}
	seen := map[string]bool{first.Name: true}
	for _, e := range t.entries {
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		order = append(order, e)
	}
	return order, nil
}

// origin finds the configured target rawURL was built against.
func (r *Router) origin(rawURL string) (model.Target, bool) {
	var best model.Target
	found := false
	for _, t := range r.Targets() {
		base := strings.TrimSuffix(t.BaseURL, "/")
		if base == "" || !strings.HasPrefix(rawURL, base) {
			continue
		}
		rest := rawURL[len(base):]
		if rest != "" && !strings.ContainsAny(rest[:1], "/?#") {
			continue
		}
		// Longest base wins when mirrors share a host.
		if !found || len(base) > len(strings.TrimSuffix(best.BaseURL, "/")) {
			best, found = t, true
		}
	}
	return best, found
}

// proxied wraps target URLs for targets that need the passthrough proxy.
func (r *Router) proxied(target model.Target, rawURL string) string {
	if !target.RequiresProxy || !r.useProxy || r.proxyURL == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(r.proxyURL, "?") {
		sep = "&"
	}
	return r.proxyURL + sep + "url=" + url.QueryEscape(rawURL)
}

// Execute performs req against the attempt order, failing over until a
// target produces an acceptable response.
//
// At least max(3, len(targets)) attempts are made, cycling through the
// order. Once they are spent, the fallback is chosen in this order: the
// last validator-rejected response, the last 2xx upstream-error response,
// the last HTTP-error response. If none exist a *ConnectivityError is
// returned. A 429 is returned immediately unless failover on rate limits
// is enabled.
func (r *Router) Execute(ctx context.Context, req Request, opts Options) (*Response, error) {
	order, err := r.BuildAttemptOrder(req.URL)
	if err != nil {
		return nil, err
	}
	from, ok := r.origin(req.URL)
	if !ok {
		return nil, &ConfigError{Reason: fmt.Sprintf("url %q does not belong to any target", req.URL)}
	}
	// The first target gets the request as built; only fallbacks may
	// have their quality adjusted.
	first := order[0]
	firstURL, err := Rewrite(req.URL, from, first, "")
	if err != nil {
		return nil, err
	}

	attempts := max(minAttempts, len(order))
	failoverOn429 := r.failoverOnRateLimit || opts.FailoverOnRateLimit

	var rejected, unexpected, lastHTTP *Response
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target := order[i%len(order)]
		log := r.logger.With(zap.String("target", target.Name), zap.Int("attempt", i+1))

		targetURL, err := Rewrite(firstURL, first, target, opts.PreferredQuality)
		if err != nil {
			lastErr = err
			log.Debug("rewrite failed", zap.Error(err))
			continue
		}

		raw, err := r.client.Get(ctx, r.proxied(target, targetURL), req.Header)
		if err != nil {
			lastErr = err
			log.Debug("request failed", zap.Error(err))
			continue
		}

		resp := &Response{
			StatusCode: raw.StatusCode,
			Header:     raw.Header,
			Body:       raw.Body,
			URL:        targetURL,
			Target:     target.Name,
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests && !failoverOn429:
			log.Warn("rate limited")
			return resp, nil
		case !resp.IsSuccess():
			lastHTTP = resp
			log.Debug("http error", zap.Int("status", resp.StatusCode))
			continue
		case IsUpstreamError(resp.Body):
			unexpected = resp
			log.Debug("upstream error in successful response")
			continue
		case opts.Validator != nil && !opts.Validator(resp):
			rejected = resp
			log.Debug("response rejected by validator")
			continue
		}

		return resp, nil
	}

	switch {
	case rejected != nil:
		return rejected, nil
	case unexpected != nil:
		return unexpected, nil
	case lastHTTP != nil:
		return lastHTTP, nil
	}
	r.logger.Warn("all targets failed", zap.Int("attempts", attempts), zap.Error(lastErr))
	return nil, &ConnectivityError{Attempts: attempts, Err: lastErr}
}
