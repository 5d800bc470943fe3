// Package list implements the four named-list backends (spec §4.11): an
// in-memory static set, a Redis set, a SQL query result, and a JSON file
// read via JSONPath. Every backend resolves to the same membership
// question the condition evaluator needs: is value a member of list <id>.
package list

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"encoding/json"

	"github.com/PaesslerAG/jsonpath"

	"github.com/corintai/corint/internal/corinterr"
	"github.com/corintai/corint/internal/datasource"
	"github.com/corintai/corint/internal/ir"
)

// refreshInterval bounds how stale a sql/json_file backed list's cached
// member set may be before the next membership check refetches it.
const refreshInterval = 30 * time.Second

// Checker resolves list membership against the compiled Repository, backed
// by the Datasource Gateway for redis_set/sql lists and the local
// filesystem for json_file lists.
type Checker struct {
	repo    *ir.Repository
	gateway *datasource.Gateway

	mu    sync.Mutex
	cache map[string]*cachedSet
}

type cachedSet struct {
	members   map[string]bool
	fetchedAt time.Time
}

// New creates a list Checker.
func New(repo *ir.Repository, gateway *datasource.Gateway) *Checker {
	return &Checker{repo: repo, gateway: gateway, cache: make(map[string]*cachedSet)}
}

// CheckFunc returns the closure wired into runtime.Context.SetListChecker.
func (c *Checker) CheckFunc() func(listID string, value any) (member bool, known bool) {
	return c.Check
}

// Check reports whether value is a member of listID. known is false if the
// list is unknown or its backend could not be reached (spec §4.8: "Unknown
// on transient backend error").
func (c *Checker) Check(listID string, value any) (bool, bool) {
	l, ok := c.repo.Lists[listID]
	if !ok {
		return false, false
	}
	text := fmt.Sprintf("%v", value)

	switch l.Backend {
	case "static":
		for _, e := range l.Entries {
			if e == text {
				return true, true
			}
		}
		return false, true

	case "redis_set":
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		member, err := c.gateway.ListIsMember(ctx, l.DatasourceID, l.Key, text)
		if err != nil {
			return false, false
		}
		return member, true

	case "sql", "json_file":
		set, ok := c.memberSet(l)
		if !ok {
			return false, false
		}
		return set[text], true

	default:
		return false, false
	}
}

func (c *Checker) memberSet(l *ir.ListIR) (map[string]bool, bool) {
	c.mu.Lock()
	cached, ok := c.cache[l.ID]
	c.mu.Unlock()
	if ok && time.Since(cached.fetchedAt) < refreshInterval {
		return cached.members, true
	}

	var members []string
	var err error
	switch l.Backend {
	case "sql":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		members, err = c.gateway.ListQuery(ctx, l.DatasourceID, l.Query)
	case "json_file":
		members, err = readJSONFileEntries(l.Path, l.EntriesPath)
	}
	if err != nil {
		if cached != nil {
			return cached.members, true // serve stale on transient refresh failure
		}
		return nil, false
	}

	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	c.mu.Lock()
	c.cache[l.ID] = &cachedSet{members: set, fetchedAt: time.Now()}
	c.mu.Unlock()
	return set, true
}

func readJSONFileEntries(path, entriesPath string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "read json_file list", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "decode json_file list", err)
	}
	v, err := jsonpath.Get(entriesPath, doc)
	if err != nil {
		return nil, corinterr.Recoverable(corinterr.KindDatasourceUnavailable, "evaluate json_file entries_path", err)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, corinterr.Recoverable(corinterr.KindTypeMismatch, "json_file entries_path did not resolve to an array", nil)
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		out[i] = fmt.Sprintf("%v", e)
	}
	return out, nil
}
