package integration

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// RecentRunsLimit is the number of runs shown on the dashboard
const RecentRunsLimit = 10

// DashboardCache stores computed dashboards for a short time
type DashboardCache interface {
	// Get returns ok=false on a miss
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DashboardOption configures a DashboardService
type DashboardOption func(*DashboardService)

// WithDashboardCache caches computed dashboards for ttl. A zero ttl disables caching.
func WithDashboardCache(cache DashboardCache, ttl time.Duration) DashboardOption {
	return func(s *DashboardService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithDashboardLogger sets the logger
func WithDashboardLogger(logger *zap.Logger) DashboardOption {
	return func(s *DashboardService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// DashboardService aggregates the operator overview on demand
type DashboardService struct {
	sources  integration.IntegrationSourceReader
	records  integration.IntegrationRecordReader
	mappings integration.FieldMappingReader
	runs     integration.SyncRunRepository
	registry integration.AdapterRegistry
	cache    DashboardCache
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(
	sources integration.IntegrationSourceReader,
	records integration.IntegrationRecordReader,
	mappings integration.FieldMappingReader,
	runs integration.SyncRunRepository,
	registry integration.AdapterRegistry,
	opts ...DashboardOption,
) *DashboardService {
	s := &DashboardService{
		sources:  sources,
		records:  records,
		mappings: mappings,
		runs:     runs,
		registry: registry,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetDashboard returns the overview across all sources, or of one source when sourceID is set
func (s *DashboardService) GetDashboard(ctx context.Context, sourceID *uuid.UUID) (*Dashboard, error) {
	key := dashboardCacheKey(sourceID)
	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	dashboard, err := s.compute(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, key, dashboard)
	return dashboard, nil
}

func dashboardCacheKey(sourceID *uuid.UUID) string {
	if sourceID == nil {
		return "integration:dashboard:all"
	}
	return "integration:dashboard:" + sourceID.String()
}

func (s *DashboardService) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

func (s *DashboardService) fromCache(ctx context.Context, key string) *Dashboard {
	if !s.cacheEnabled() {
		return nil
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var d Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		s.logger.Warn("dashboard cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &d
}

func (s *DashboardService) toCache(ctx context.Context, key string, d *Dashboard) {
	if !s.cacheEnabled() {
		return
	}
	data, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *DashboardService) compute(ctx context.Context, sourceID *uuid.UUID) (*Dashboard, error) {
	var scoped *integration.IntegrationSource
	if sourceID != nil {
		source, err := s.sources.FindByID(ctx, *sourceID)
		if err != nil {
			return nil, err
		}
		scoped = source
	}

	systems, err := s.systemSummaries(ctx, scoped)
	if err != nil {
		return nil, err
	}

	records, err := s.recordSummary(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	active, err := s.activeSources(ctx, scoped)
	if err != nil {
		return nil, err
	}

	mappings, err := s.mappingSummary(ctx, sourceID, active)
	if err != nil {
		return nil, err
	}

	runs, err := s.runs.ListRecent(ctx, sourceID, RecentRunsLimit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	return &Dashboard{
		Systems:     systems,
		Records:     records,
		Mappings:    mappings,
		Freshness:   freshness(active, now, s.registry.SupportsPull),
		RecentRuns:  ToSyncRunResponses(runs),
		GeneratedAt: now,
	}, nil
}

func (s *DashboardService) systemSummaries(ctx context.Context, scoped *integration.IntegrationSource) ([]SystemSummary, error) {
	if scoped != nil {
		active := int64(0)
		if scoped.IsActive() {
			active = 1
		}
		return []SystemSummary{{
			SystemType:  scoped.SystemType,
			DisplayName: scoped.SystemType.DisplayName(),
			Total:       1,
			Active:      active,
		}}, nil
	}

	counts, err := s.sources.CountBySystemType(ctx)
	if err != nil {
		return nil, err
	}
	byType := make(map[integration.SystemType]integration.SystemTypeCount, len(counts))
	for _, c := range counts {
		byType[c.SystemType] = c
	}

	summaries := make([]SystemSummary, 0, len(counts))
	for _, st := range integration.AllSystemTypes() {
		c, ok := byType[st]
		if !ok || c.Total == 0 {
			continue
		}
		summaries = append(summaries, SystemSummary{
			SystemType:  st,
			DisplayName: st.DisplayName(),
			Total:       c.Total,
			Active:      min(c.Active, c.Total),
		})
	}
	return summaries, nil
}

func (s *DashboardService) recordSummary(ctx context.Context, sourceID *uuid.UUID) (RecordSummary, error) {
	counts, err := s.records.CountByStatus(ctx, sourceID)
	if err != nil {
		return RecordSummary{}, err
	}
	byEntity, err := s.records.CountByEntityType(ctx, sourceID)
	if err != nil {
		return RecordSummary{}, err
	}
	if byEntity == nil {
		byEntity = map[string]int64{}
	}
	return RecordSummary{
		Total:        counts.Total,
		Synced:       counts.Synced,
		Pending:      counts.Pending,
		Failed:       counts.Failed,
		ByEntityType: byEntity,
	}, nil
}

func (s *DashboardService) activeSources(ctx context.Context, scoped *integration.IntegrationSource) ([]integration.IntegrationSource, error) {
	if scoped != nil {
		if scoped.IsActive() {
			return []integration.IntegrationSource{*scoped}, nil
		}
		return nil, nil
	}
	return s.sources.ListActive(ctx)
}

// mappingSummary flags active sources that lack a mapping for one of their
// adapter's entity types or still have pending mappings
func (s *DashboardService) mappingSummary(ctx context.Context, sourceID *uuid.UUID, active []integration.IntegrationSource) (MappingSummary, error) {
	counts, err := s.mappings.CountByStatus(ctx, sourceID)
	if err != nil {
		return MappingSummary{}, err
	}
	stats, err := s.mappings.StatsByScope(ctx)
	if err != nil {
		return MappingSummary{}, err
	}

	type scopeKey struct {
		source uuid.UUID
		entity string
	}
	mapped := make(map[scopeKey]int64, len(stats))
	pending := make(map[uuid.UUID]int64)
	for _, st := range stats {
		mapped[scopeKey{st.SourceID, st.ExternalEntity}] += st.Total
		pending[st.SourceID] += st.Pending
	}

	under := []UnderMappedEntry{}
	for _, src := range active {
		var unmapped []string
		for _, entity := range s.registry.EntityTypes(src.SystemType) {
			if mapped[scopeKey{src.ID, entity}] == 0 {
				unmapped = append(unmapped, entity)
			}
		}
		if len(unmapped) == 0 && pending[src.ID] == 0 {
			continue
		}
		under = append(under, UnderMappedEntry{
			SourceID:         src.ID,
			Name:             src.Name,
			UnmappedEntities: unmapped,
			PendingMappings:  pending[src.ID],
		})
	}

	return MappingSummary{
		Total:              counts.Total,
		Validated:          counts.Validated,
		Pending:            counts.Pending,
		UnderMappedSources: under,
	}, nil
}

// freshness averages the hours since the last sync of active pull sources, rounded to 2 decimals.
// Push-only sources never advance lastSyncAt and are listed on their own.
func freshness(active []integration.IntegrationSource, now time.Time, pull func(integration.SystemType) bool) FreshnessSummary {
	summary := FreshnessSummary{NeverSynced: []SourceBrief{}, PushOnly: []SourceBrief{}}

	sum := decimal.Zero
	synced := 0
	for i := range active {
		src := &active[i]
		brief := SourceBrief{ID: src.ID, Name: src.Name, SystemType: src.SystemType}
		if !pull(src.SystemType) {
			summary.PushOnly = append(summary.PushOnly, brief)
			continue
		}
		hours, ok := src.HoursSinceSync(now)
		if !ok {
			summary.NeverSynced = append(summary.NeverSynced, brief)
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(hours))
		synced++
	}

	if synced > 0 {
		avg, _ := sum.Div(decimal.NewFromInt(int64(synced))).Round(2).Float64()
		summary.AverageHoursSinceSync = &avg
	}
	byName := func(list []SourceBrief) {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	byName(summary.NeverSynced)
	byName(summary.PushOnly)
	return summary
}
