package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/cache"
	"github.com/staffhub/backend/internal/infrastructure/connector"
	"github.com/staffhub/backend/internal/infrastructure/persistence"
	"github.com/staffhub/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ---------------------------------------------------------------------------
// Test environment
// ---------------------------------------------------------------------------

type testEnv struct {
	db       *gorm.DB
	sources  *persistence.GormIntegrationSourceRepository
	records  *persistence.GormIntegrationRecordRepository
	mappings *persistence.GormFieldMappingRepository
	runs     *persistence.GormSyncRunRepository
	lock     *cache.InMemoryRunLock
	registry *connector.Registry
	engine   *MappingEngine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.IntegrationSourceModel{},
		&models.FieldMappingModel{},
		&models.IntegrationRecordModel{},
		&models.SyncRunModel{},
	))

	env := &testEnv{
		db:       db,
		sources:  persistence.NewGormIntegrationSourceRepository(db),
		records:  persistence.NewGormIntegrationRecordRepository(db),
		mappings: persistence.NewGormFieldMappingRepository(db),
		runs:     persistence.NewGormSyncRunRepository(db),
		lock:     cache.NewInMemoryRunLock(),
		registry: connector.NewRegistry(),
	}
	env.engine = NewMappingEngine(env.mappings, nil)
	env.registry.RegisterPushOnly(integration.SystemTypeManual, []string{connector.ManualEntityType})
	env.registry.RegisterPushOnly(integration.SystemTypeCSV, []string{connector.CSVEntityType})
	return env
}

// source creates and saves a source. Connector sources get an API URL.
func (e *testEnv) source(t *testing.T, name string, systemType integration.SystemType, activate bool) *integration.IntegrationSource {
	t.Helper()
	var apiURL *string
	if systemType.IsConnector() {
		u := "https://" + string(systemType) + ".example.com"
		apiURL = &u
	}
	src, err := integration.NewIntegrationSource(name, systemType, "", apiURL)
	require.NoError(t, err)
	if activate {
		require.NoError(t, src.Activate())
	}
	require.NoError(t, e.sources.Save(context.Background(), src))
	return src
}

func (e *testEnv) mapping(t *testing.T, sourceID uuid.UUID, spec integration.FieldMappingSpec) *integration.FieldMapping {
	t.Helper()
	m, err := integration.NewFieldMapping(sourceID, spec)
	require.NoError(t, err)
	require.NoError(t, e.mappings.Save(context.Background(), m))
	return m
}

func (e *testEnv) reloadSource(t *testing.T, id uuid.UUID) *integration.IntegrationSource {
	t.Helper()
	src, err := e.sources.FindByID(context.Background(), id)
	require.NoError(t, err)
	return src
}

// ---------------------------------------------------------------------------
// Fake adapters
// ---------------------------------------------------------------------------

// stubAdapter returns fixed records. When gate is set, FetchRecords blocks
// until the gate closes or the context ends.
type stubAdapter struct {
	systemType integration.SystemType
	records    []integration.RawExternalRecord
	err        error
	gate       chan struct{}
	fetched    chan struct{}

	mu    sync.Mutex
	calls []*time.Time
}

func (a *stubAdapter) SystemType() integration.SystemType { return a.systemType }

func (a *stubAdapter) EntityTypes() []string { return []string{"incident"} }

func (a *stubAdapter) FetchRecords(ctx context.Context, since *time.Time) ([]integration.RawExternalRecord, error) {
	a.mu.Lock()
	a.calls = append(a.calls, since)
	a.mu.Unlock()

	if a.fetched != nil {
		close(a.fetched)
	}
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.records, nil
}

func (a *stubAdapter) sinceCalls() []*time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*time.Time(nil), a.calls...)
}

func (e *testEnv) registerStub(systemType integration.SystemType, entityTypes []string, adapter *stubAdapter) {
	e.registry.Register(systemType, entityTypes, func(*integration.IntegrationSource) (integration.SystemAdapter, error) {
		return adapter, nil
	})
}

// ---------------------------------------------------------------------------
// Dispatchers
// ---------------------------------------------------------------------------

// inlineDispatcher runs the job before Dispatch returns
type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(_ uuid.UUID, job func(ctx context.Context)) error {
	job(context.Background())
	return nil
}

// goDispatcher runs each job on its own goroutine
type goDispatcher struct {
	wg sync.WaitGroup
}

func (d *goDispatcher) Dispatch(_ uuid.UUID, job func(ctx context.Context)) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		job(context.Background())
	}()
	return nil
}

// rejectingDispatcher refuses every job
type rejectingDispatcher struct {
	err error
}

func (d rejectingDispatcher) Dispatch(uuid.UUID, func(ctx context.Context)) error {
	return d.err
}

func strPtr(s string) *string { return &s }

func incident(id string, data map[string]any) integration.RawExternalRecord {
	return integration.RawExternalRecord{ExternalID: id, EntityType: "incident", Data: data}
}
