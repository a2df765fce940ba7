package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dashboardFixture struct {
	env       *testEnv
	now       time.Time
	snActive  *integration.IntegrationSource
	snDraft   *integration.IntegrationSource
	asana     *integration.IntegrationSource
	recentRun *integration.SyncRun
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	env.registerStub(integration.SystemTypeServiceNow, []string{"incident"}, &stubAdapter{systemType: integration.SystemTypeServiceNow})
	env.registerStub(integration.SystemTypeAsana, []string{"task"}, &stubAdapter{systemType: integration.SystemTypeAsana})

	snActive := env.source(t, "ServiceNow Prod", integration.SystemTypeServiceNow, true)
	synced := now.Add(-2 * time.Hour)
	snActive.LastSyncAt = &synced
	snActive.LastSyncStatus = integration.LastSyncCompleted
	require.NoError(t, env.sources.Save(ctx, snActive))

	snDraft := env.source(t, "ServiceNow Test", integration.SystemTypeServiceNow, false)
	asana := env.source(t, "Asana Rostering", integration.SystemTypeAsana, true)

	for _, id := range []string{"INC001", "INC002"} {
		_, err := env.records.Upsert(ctx, integration.RecordUpsert{
			SourceID:       snActive.ID,
			ExternalID:     id,
			ExternalEntity: "incident",
			ExternalData:   map[string]any{"number": id},
			MappedData:     map[string]any{FieldTitle: id},
			Status:         integration.RecordSyncCompleted,
		})
		require.NoError(t, err)
	}
	_, err := env.records.Upsert(ctx, integration.RecordUpsert{
		SourceID:       asana.ID,
		ExternalID:     "1200",
		ExternalEntity: "task",
		ExternalData:   map[string]any{"gid": "1200"},
		Status:         integration.RecordSyncFailed,
		Error:          "title: required field \"name\" is missing",
	})
	require.NoError(t, err)

	m := env.mapping(t, snActive.ID, integration.FieldMappingSpec{
		ExternalEntity: "incident", ExternalField: "number", InternalField: FieldReference,
	})
	m.MarkValidated()
	require.NoError(t, env.mappings.Save(ctx, m))

	run, err := integration.NewSyncRun(snActive.ID, integration.SyncTypeFull)
	require.NoError(t, err)
	require.NoError(t, run.RecordSucceeded())
	require.NoError(t, run.RecordSucceeded())
	require.NoError(t, run.Complete())
	require.NoError(t, env.runs.Save(ctx, run))

	return &dashboardFixture{
		env:       env,
		now:       now,
		snActive:  snActive,
		snDraft:   snDraft,
		asana:     asana,
		recentRun: run,
	}
}

func (f *dashboardFixture) service(opts ...DashboardOption) *DashboardService {
	svc := NewDashboardService(f.env.sources, f.env.records, f.env.mappings, f.env.runs, f.env.registry, opts...)
	svc.now = func() time.Time { return f.now }
	return svc
}

func TestDashboardService_GetDashboard(t *testing.T) {
	f := newDashboardFixture(t)
	d, err := f.service().GetDashboard(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, d.Systems, 2)
	assert.Equal(t, SystemSummary{SystemType: integration.SystemTypeServiceNow, DisplayName: "ServiceNow", Total: 2, Active: 1}, d.Systems[0])
	assert.Equal(t, integration.SystemTypeAsana, d.Systems[1].SystemType)
	assert.Equal(t, int64(1), d.Systems[1].Total)
	assert.Equal(t, int64(1), d.Systems[1].Active)

	assert.Equal(t, int64(3), d.Records.Total)
	assert.Equal(t, int64(2), d.Records.Synced)
	assert.Equal(t, int64(1), d.Records.Failed)
	assert.Equal(t, int64(0), d.Records.Pending)
	assert.Equal(t, map[string]int64{"incident": 2, "task": 1}, d.Records.ByEntityType)

	assert.Equal(t, int64(1), d.Mappings.Total)
	assert.Equal(t, int64(1), d.Mappings.Validated)
	require.Len(t, d.Mappings.UnderMappedSources, 1)
	assert.Equal(t, f.asana.ID, d.Mappings.UnderMappedSources[0].SourceID)
	assert.Equal(t, []string{"task"}, d.Mappings.UnderMappedSources[0].UnmappedEntities)

	require.NotNil(t, d.Freshness.AverageHoursSinceSync)
	assert.InDelta(t, 2.0, *d.Freshness.AverageHoursSinceSync, 0.001)
	require.Len(t, d.Freshness.NeverSynced, 1)
	assert.Equal(t, "Asana Rostering", d.Freshness.NeverSynced[0].Name)

	require.Len(t, d.RecentRuns, 1)
	assert.Equal(t, f.recentRun.ID, d.RecentRuns[0].ID)
	assert.Equal(t, f.now, d.GeneratedAt)
}

func TestDashboardService_GetDashboard_ScopedToSource(t *testing.T) {
	f := newDashboardFixture(t)
	svc := f.service()
	ctx := context.Background()

	d, err := svc.GetDashboard(ctx, &f.asana.ID)
	require.NoError(t, err)
	require.Len(t, d.Systems, 1)
	assert.Equal(t, int64(1), d.Systems[0].Active)
	assert.Equal(t, int64(1), d.Records.Total)
	assert.Equal(t, int64(1), d.Records.Failed)
	assert.Empty(t, d.RecentRuns)
	assert.Nil(t, d.Freshness.AverageHoursSinceSync)

	d, err = svc.GetDashboard(ctx, &f.snDraft.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Systems[0].Active)
	assert.Empty(t, d.Mappings.UnderMappedSources, "inactive sources are not flagged")
	assert.Empty(t, d.Freshness.NeverSynced)

	missing := uuid.New()
	_, err = svc.GetDashboard(ctx, &missing)
	assert.ErrorIs(t, err, integration.ErrSourceNotFound)
}

func TestDashboardService_GetDashboard_PushOnlySourcesNotStale(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	roster := f.env.source(t, "Agency roster", integration.SystemTypeCSV, true)
	_, err := f.env.records.Upsert(ctx, integration.RecordUpsert{
		SourceID:       roster.ID,
		ExternalID:     "R-1",
		ExternalEntity: "csv_row",
		MappedData:     map[string]any{FieldTitle: "Night float"},
		Status:         integration.RecordSyncCompleted,
	})
	require.NoError(t, err)
	f.env.source(t, "Ward requests", integration.SystemTypeManual, true)

	d, err := f.service().GetDashboard(ctx, nil)
	require.NoError(t, err)

	require.Len(t, d.Freshness.NeverSynced, 1)
	assert.Equal(t, "Asana Rostering", d.Freshness.NeverSynced[0].Name)
	require.Len(t, d.Freshness.PushOnly, 2)
	assert.Equal(t, "Agency roster", d.Freshness.PushOnly[0].Name)
	assert.Equal(t, integration.SystemTypeManual, d.Freshness.PushOnly[1].SystemType)
	require.NotNil(t, d.Freshness.AverageHoursSinceSync)
	assert.InDelta(t, 2.0, *d.Freshness.AverageHoursSinceSync, 0.001)
}

func TestDashboardService_GetDashboard_Empty(t *testing.T) {
	env := newTestEnv(t)
	d, err := NewDashboardService(env.sources, env.records, env.mappings, env.runs, env.registry).GetDashboard(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, d.Systems)
	assert.Zero(t, d.Records.Total)
	assert.NotNil(t, d.Records.ByEntityType)
	assert.Nil(t, d.Freshness.AverageHoursSinceSync)
	assert.Empty(t, d.Mappings.UnderMappedSources)
	assert.Empty(t, d.RecentRuns)
}

func TestDashboardService_Cache(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	store := cache.NewInMemoryDashboardCache()
	defer store.Close()

	svc := f.service(WithDashboardCache(store, time.Minute))
	first, err := svc.GetDashboard(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Size())

	f.env.source(t, "Jira Theatres", integration.SystemTypeJira, true)

	cached, err := svc.GetDashboard(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, len(first.Systems), len(cached.Systems), "served from cache")

	_, err = svc.GetDashboard(ctx, &f.asana.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Size(), "scoped dashboards are cached under their own key")

	uncached := f.service(WithDashboardCache(store, 0))
	fresh, err := uncached.GetDashboard(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, fresh.Systems, 3, "zero TTL bypasses the cache")
}
