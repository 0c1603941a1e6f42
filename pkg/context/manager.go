package context

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// AgentMeta is the subset of agent metadata the context manager needs:
// the ordered list of context requirements an agent declares.
type AgentMeta struct {
	AgentID      string
	Requirements []Requirement
}

// Auth carries the tenant/session identity threaded through curation,
// mirroring the Router's auth contract.
type Auth struct {
	TenantID  string
	UserID    string
	SessionID string
}

const defaultCacheTTL = 60 * time.Second

// Manager curates per-agent context windows within a token budget,
// pulling from registered Sources. Fetched items are cached per
// (tenant, project, source type, query prefix) key via go-cache with a
// short TTL, since curation
// runs on every agent dispatch and sources rarely change between
// consecutive calls in the same run.
type Manager struct {
	mu      sync.RWMutex
	sources map[Type]Source
	budget  Budget
	cache   *gocache.Cache
	logger  *slog.Logger
}

// NewManager creates a context manager with the given budget. A nil
// logger falls back to slog.Default().
func NewManager(budget Budget, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sources: make(map[Type]Source),
		budget:  budget,
		cache:   gocache.New(defaultCacheTTL, 2*defaultCacheTTL),
		logger:  logger,
	}
}

// RegisterSource registers src for its declared Type. Last registration
// wins per type; overwriting an existing source emits a warning.
func (m *Manager) RegisterSource(src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sources[src.Type()]; exists {
		m.logger.Warn("overwriting context source registration", "type", src.Type())
	}
	m.sources[src.Type()] = src
}

// InvalidateCache bulk-invalidates every cached entry.
func (m *Manager) InvalidateCache() {
	m.cache.Flush()
}

// EstimateTokens implements the documented estimator:
// ceil(utf8_bytes_of_content_serialized_as_compact_json / 4).
func EstimateTokens(item Item) int {
	raw, err := json.Marshal(item.Content)
	if err != nil {
		return 0
	}
	return int(math.Ceil(float64(len(raw)) / 4.0))
}

func cacheKey(tenantID, projectID string, t Type, query string) string {
	q := query
	if len(q) > 50 {
		q = q[:50]
	}
	return fmt.Sprintf("%s|%s|%s|%s", tenantID, projectID, t, q)
}

// CurateContext assembles a budgeted context window for one agent turn.
func (m *Manager) CurateContext(ctx context.Context, meta AgentMeta, auth Auth, projectID string, taskQuery string) (*CuratedContext, error) {
	result := &CuratedContext{
		Truncated: make(map[Type]bool),
	}

	// Required requirements are attempted before optional ones
	// regardless of budget pressure.
	ordered := orderRequirements(meta.Requirements, m.budget.PriorityOrder)

	remainingTotal := m.budget.TotalTokens

	for _, req := range ordered {
		if remainingTotal <= 0 {
			if req.Required {
				result.MissingRequired = append(result.MissingRequired, req.Type)
			}
			continue
		}

		items, err := m.fetchType(ctx, req, auth, projectID, taskQuery)
		if err != nil {
			m.logger.Warn("context source fetch failed", "type", req.Type, "error", err)
			if req.Required {
				result.MissingRequired = append(result.MissingRequired, req.Type)
			}
			continue
		}
		if len(items) == 0 {
			if req.Required {
				result.MissingRequired = append(result.MissingRequired, req.Type)
			}
			continue
		}

		perTypeCap := m.budget.PerTypeTokens[req.Type]
		if perTypeCap <= 0 {
			perTypeCap = remainingTotal
		}
		typeBudget := minInt(remainingTotal, perTypeCap)
		typeSpent := 0

		for _, item := range items {
			if !validItem(item) {
				continue
			}
			cost := EstimateTokens(item)
			if typeSpent+cost > typeBudget || remainingTotal-cost < 0 {
				result.Truncated[req.Type] = true
				break
			}
			result.Items = append(result.Items, item)
			typeSpent += cost
			remainingTotal -= cost
			result.TotalTokens += cost
		}
	}

	return result, nil
}

func (m *Manager) fetchType(ctx context.Context, req Requirement, auth Auth, projectID, query string) ([]Item, error) {
	m.mu.RLock()
	src, ok := m.sources[req.Type]
	m.mu.RUnlock()
	if !ok || !src.IsAvailable() {
		return nil, nil
	}

	key := cacheKey(auth.TenantID, projectID, req.Type, query)
	if cached, found := m.cache.Get(key); found {
		return cached.([]Item), nil
	}

	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = 20
	}
	params := SourceParams{
		TenantID:  auth.TenantID,
		ProjectID: projectID,
		Query:     query,
		MaxItems:  maxItems,
		Filter:    req.Filter,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	items, err := src.Fetch(ctx, params)
	if err != nil {
		return nil, err
	}

	m.cache.Set(key, items, defaultCacheTTL)
	return items, nil
}

func validItem(item Item) bool {
	return item.Content != ""
}

// orderRequirements sorts requirements: required-first, then by the
// manager's priority order, unknown types last in declaration order.
func orderRequirements(reqs []Requirement, priority []Type) []Requirement {
	rank := make(map[Type]int, len(priority))
	for i, t := range priority {
		rank[t] = i
	}

	required := make([]Requirement, 0, len(reqs))
	optional := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		if r.Required {
			required = append(required, r)
		} else {
			optional = append(optional, r)
		}
	}
	sortByRank(required, rank)
	sortByRank(optional, rank)
	return append(required, optional...)
}

func sortByRank(reqs []Requirement, rank map[Type]int) {
	// simple insertion sort; requirement lists are short
	for i := 1; i < len(reqs); i++ {
		j := i
		for j > 0 && rankOf(reqs[j-1].Type, rank) > rankOf(reqs[j].Type, rank) {
			reqs[j-1], reqs[j] = reqs[j], reqs[j-1]
			j--
		}
	}
}

func rankOf(t Type, rank map[Type]int) int {
	if r, ok := rank[t]; ok {
		return r
	}
	return len(rank) + 1
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
