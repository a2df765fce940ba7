package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	integrationapp "github.com/staffhub/backend/internal/application/integration"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/cache"
	"github.com/staffhub/backend/internal/infrastructure/connector"
	"github.com/staffhub/backend/internal/infrastructure/persistence"
	"github.com/staffhub/backend/internal/infrastructure/scheduler"
	"github.com/staffhub/backend/internal/interfaces/http/handler"
	"github.com/staffhub/backend/internal/interfaces/http/router"
	"github.com/staffhub/backend/tests/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// hub wires the services against the test database the way the server does
type hub struct {
	db        *TestDB
	sources   *persistence.GormIntegrationSourceRepository
	records   *persistence.GormIntegrationRecordRepository
	mappings  *persistence.GormFieldMappingRepository
	runs      *persistence.GormSyncRunRepository
	source    *integrationapp.SourceService
	syncs     *integrationapp.SyncService
	imports   *integrationapp.ImportService
	mapping   *integrationapp.MappingService
	dashboard *integrationapp.DashboardService
}

func newHub(t *testing.T) *hub {
	t.Helper()

	testDB := NewTestDB(t)
	h := &hub{
		db:       testDB,
		sources:  persistence.NewGormIntegrationSourceRepository(testDB.DB),
		records:  persistence.NewGormIntegrationRecordRepository(testDB.DB),
		mappings: persistence.NewGormFieldMappingRepository(testDB.DB),
		runs:     persistence.NewGormSyncRunRepository(testDB.DB),
	}

	cfg := connector.DefaultConfig()
	cfg.Retry.MaxAttempts = 1
	registry, err := connector.NewDefaultRegistry(cfg, zap.NewNop())
	require.NoError(t, err)

	pool, err := scheduler.NewSyncWorkerPool(scheduler.SyncWorkerPoolConfig{
		Workers:    2,
		QueueSize:  4,
		JobTimeout: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() {
		_ = pool.Stop(context.Background())
	})

	lock := cache.NewInMemoryRunLock()
	engine := integrationapp.NewMappingEngine(h.mappings, nil)
	h.source = integrationapp.NewSourceService(h.sources, h.records, h.runs, nil,
		integrationapp.WithSourceRunLock(lock))
	h.syncs = integrationapp.NewSyncService(h.sources, h.runs, h.records, engine, registry, lock, pool,
		integrationapp.DefaultSyncConfig())
	h.imports = integrationapp.NewImportService(h.sources, h.runs, h.records, engine, lock,
		integrationapp.DefaultImportConfig())
	h.mapping = integrationapp.NewMappingService(h.sources, h.mappings, nil)
	h.dashboard = integrationapp.NewDashboardService(h.sources, h.records, h.mappings, h.runs, registry)
	return h
}

// api builds the full HTTP engine over the hub's services
func (h *hub) api(t *testing.T) http.Handler {
	t.Helper()

	engine, err := router.NewEngine(router.EngineConfig{}, router.Handlers{
		Sources:  handler.NewIntegrationSourceHandler(h.source, h.dashboard),
		Syncs:    handler.NewSyncHandler(h.syncs),
		Imports:  handler.NewImportHandler(h.imports),
		Mappings: handler.NewMappingHandler(h.mapping),
		System:   handler.NewSystemHandler("Integration Hub", "test", handler.PingFunc(h.ping), nil),
	}, zap.NewNop())
	require.NoError(t, err)
	return engine
}

func (h *hub) ping(ctx context.Context) error {
	sqlDB, err := h.db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// waitForRun polls until the run leaves the running state
func (h *hub) waitForRun(t *testing.T, started integration.SyncRun) *integration.SyncRun {
	t.Helper()

	var finished *integration.SyncRun
	testutil.RequireEventually(t, func() bool {
		run, err := h.runs.FindByID(context.Background(), started.ID)
		if err != nil || run.Status == integration.SyncRunStatusRunning {
			return false
		}
		finished = run
		return true
	}, 10*time.Second, 50*time.Millisecond, "run %s did not finish", started.ID)
	return finished
}
