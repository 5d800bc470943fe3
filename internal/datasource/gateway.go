// Package datasource is the Datasource Gateway (spec §5, §7): the single
// async façade the Feature Engine, List backends, and pipeline executor
// call into for SQL queries, KV lookups, and outbound HTTP/service calls.
// It owns lazy per-datasource_id connections and normalizes every backend's
// errors into the recoverable-error taxonomy before they reach a caller.
package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/corintlog"
	"github.com/corintai/corint/internal/datasource/fallback"
	"github.com/corintai/corint/internal/datasource/http"
	"github.com/corintai/corint/internal/datasource/kv"
	corintsql "github.com/corintai/corint/internal/datasource/sql"
	"github.com/corintai/corint/internal/engineconfig"
	"github.com/corintai/corint/internal/expr"
	"github.com/corintai/corint/internal/feature/sqlgen"
	"github.com/corintai/corint/internal/ir"
)

// endpointCacheTTL bounds how long a successful api/service response is kept
// as a last-known-good fallback value (spec §7) once its backend starts
// failing.
const endpointCacheTTL = 5 * time.Minute

// ConnInfo is one datasource's connection shape, resolved from the server
// config tree at `datasources.<id>.*` (spec §6.2).
type ConnInfo struct {
	Kind    string // sql | redis
	Dialect string // postgres | mysql | sqlite | clickhouse, when Kind == sql
	DSN     string
	Addr    string
	DB      int
}

// Gateway lazily opens one connection per datasource_id the compiled
// Repository references, guarded by the standard resilience policy.
type Gateway struct {
	tree   *engineconfig.Tree
	logger *corintlog.Logger

	mu       sync.Mutex
	sqlConns map[string]*corintsql.Backend
	sqlDial  map[string]sqlgen.Dialect
	kvConns  map[string]*kv.Backend
	httpBack *http.Backend
	fallback *fallback.Handler
}

// fallbackCacheCleanupInterval paces the background eviction of expired
// last-known-good cache entries.
const fallbackCacheCleanupInterval = 10 * time.Minute

// NewGateway creates a Gateway reading per-datasource connection info from
// tree at `datasources.<id>`, and starts the background janitor that evicts
// expired last-known-good cache entries.
func NewGateway(tree *engineconfig.Tree, logger *corintlog.Logger) *Gateway {
	g := &Gateway{
		tree:     tree,
		logger:   logger,
		sqlConns: make(map[string]*corintsql.Backend),
		sqlDial:  make(map[string]sqlgen.Dialect),
		kvConns:  make(map[string]*kv.Backend),
		httpBack: http.New(logger),
		fallback: fallback.NewHandler(fallback.DefaultConfig()),
	}
	go g.cleanupFallbackCache()
	return g
}

func (g *Gateway) cleanupFallbackCache() {
	ticker := time.NewTicker(fallbackCacheCleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		g.fallback.Cleanup()
	}
}

func (g *Gateway) connInfo(datasourceID string) (ConnInfo, error) {
	base := "datasources." + datasourceID
	kind, _ := g.tree.LookupString(base + ".kind")
	if kind == "" {
		return ConnInfo{}, corinterr.Recoverable(corinterr.KindDatasourceUnavailable,
			fmt.Sprintf("no connection configured for datasource %q", datasourceID), nil)
	}
	info := ConnInfo{Kind: kind}
	info.Dialect, _ = g.tree.LookupString(base + ".dialect")
	info.DSN, _ = g.tree.LookupString(base + ".dsn")
	info.Addr, _ = g.tree.LookupString(base + ".addr")
	return info, nil
}

func (g *Gateway) sqlBackend(ctx context.Context, datasourceID string) (*corintsql.Backend, sqlgen.Dialect, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.sqlConns[datasourceID]; ok {
		return b, g.sqlDial[datasourceID], nil
	}

	info, err := g.connInfo(datasourceID)
	if err != nil {
		return nil, "", err
	}
	dialect, err := sqlgen.ParseDialect(info.Dialect)
	if err != nil {
		return nil, "", corinterr.Recoverable(corinterr.KindDatasourceUnavailable, err.Error(), err)
	}
	if dialect != sqlgen.Postgres {
		return nil, "", corinterr.Recoverable(corinterr.KindDatasourceUnavailable,
			fmt.Sprintf("no live driver for dialect %q (rendering only)", dialect), nil)
	}

	db, err := corintsql.Open(ctx, info.DSN)
	if err != nil {
		return nil, "", corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "open sql datasource", err)
	}
	backend := corintsql.New(datasourceID, db, g.logger)
	g.sqlConns[datasourceID] = backend
	g.sqlDial[datasourceID] = dialect
	return backend, dialect, nil
}

func (g *Gateway) kvBackend(datasourceID string) (*kv.Backend, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.kvConns[datasourceID]; ok {
		return b, nil
	}

	info, err := g.connInfo(datasourceID)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{Addr: info.Addr, DB: info.DB})
	backend := kv.New(datasourceID, client, g.logger)
	g.kvConns[datasourceID] = backend
	return backend, nil
}

// AggregationValue computes an aggregation feature's current value via the
// SQL backend (spec §4.9).
func (g *Gateway) AggregationValue(ctx context.Context, f *ir.FeatureIR, entityValue string, now time.Time, lookup expr.Lookup) (any, error) {
	backend, dialect, err := g.sqlBackend(ctx, f.DatasourceID)
	if err != nil {
		return nil, err
	}
	q, err := sqlgen.BuildAggregation(f, dialect, entityValue, now, lookup)
	if err != nil {
		return nil, corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "render aggregation query", err)
	}
	return backend.QueryScalar(ctx, q)
}

// LookupValue fetches a lookup feature's key from the KV backend (spec
// §4.9: Lookup kind). A found value is cached as a last-known-good fallback,
// retrievable via CachedLookupValue once the backend starts failing.
func (g *Gateway) LookupValue(ctx context.Context, datasourceID, key string) (string, bool, error) {
	backend, err := g.kvBackend(datasourceID)
	if err != nil {
		return "", false, err
	}
	val, found, err := backend.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if found {
		g.fallback.SetCache(lookupCacheKey(datasourceID, key), val, endpointCacheTTL)
	}
	return val, found, nil
}

// CachedLookupValue returns the last value LookupValue cached for
// datasourceID/key, if any and not yet expired.
func (g *Gateway) CachedLookupValue(datasourceID, key string) (string, bool) {
	v, ok := g.fallback.GetCache(lookupCacheKey(datasourceID, key))
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookupCacheKey(datasourceID, key string) string {
	return datasourceID + ":" + key
}

// ListIsMember checks redis_set membership (spec §4.11).
func (g *Gateway) ListIsMember(ctx context.Context, datasourceID, key, value string) (bool, error) {
	backend, err := g.kvBackend(datasourceID)
	if err != nil {
		return false, err
	}
	return backend.IsMember(ctx, key, value)
}

// ListMembers returns every element of a redis_set backed list.
func (g *Gateway) ListMembers(ctx context.Context, datasourceID, key string) ([]string, error) {
	backend, err := g.kvBackend(datasourceID)
	if err != nil {
		return nil, err
	}
	return backend.Members(ctx, key)
}

// ListQuery executes an arbitrary sql-backed list query, returning the
// first column of every row.
func (g *Gateway) ListQuery(ctx context.Context, datasourceID, query string) ([]string, error) {
	backend, _, err := g.sqlBackend(ctx, datasourceID)
	if err != nil {
		return nil, err
	}
	rows, err := backend.QueryRows(ctx, sqlgen.Query{Text: query})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		for _, v := range row {
			out = append(out, fmt.Sprintf("%v", v))
			break
		}
	}
	return out, nil
}

// CallEndpoint issues an api/service step's HTTP request (spec §4.6).
// cacheKey identifies the logical endpoint (typically "<api_or_service_id>.
// <endpoint>"); a successful response is cached under it as a last-known-good
// fallback value (spec §7), retrievable via CachedEndpointResult once the
// backend starts failing.
func (g *Gateway) CallEndpoint(ctx context.Context, id, cacheKey string, req http.Request) (map[string]any, error) {
	result, err := g.httpBack.Call(ctx, id, req)
	if err != nil {
		return nil, err
	}
	g.fallback.SetCache(cacheKey, result, endpointCacheTTL)
	return result, nil
}

// CachedEndpointResult returns the last response CallEndpoint cached under
// cacheKey, if any and not yet expired. Consulted by the pipeline executor
// as the final fallback tier, after on_error.fallback and the endpoint's own
// response.fallback (spec §7).
func (g *Gateway) CachedEndpointResult(cacheKey string) (map[string]any, bool) {
	v, ok := g.fallback.GetCache(cacheKey)
	if !ok {
		return nil, false
	}
	result, ok := v.(map[string]any)
	return result, ok
}
