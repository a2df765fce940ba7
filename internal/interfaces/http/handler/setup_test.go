package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	integrationapp "github.com/staffhub/backend/internal/application/integration"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/cache"
	"github.com/staffhub/backend/internal/infrastructure/connector"
	"github.com/staffhub/backend/internal/infrastructure/persistence"
	"github.com/staffhub/backend/internal/infrastructure/persistence/models"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
	"github.com/staffhub/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// handlerEnv wires the integration handlers to real services over an
// in-memory database.
type handlerEnv struct {
	engine   *gin.Engine
	sources  *persistence.GormIntegrationSourceRepository
	records  *persistence.GormIntegrationRecordRepository
	mappings *persistence.GormFieldMappingRepository
	runs     *persistence.GormSyncRunRepository
	lock     *cache.InMemoryRunLock
	adapter  *fixedAdapter
}

type envOption func(*envConfig)

type envConfig struct {
	dispatcher integrationapp.RunDispatcher
}

func withDispatcher(d integrationapp.RunDispatcher) envOption {
	return func(c *envConfig) { c.dispatcher = d }
}

func newHandlerEnv(t *testing.T, opts ...envOption) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.SetupValidator())

	cfg := envConfig{dispatcher: inlineDispatcher{}}
	for _, opt := range opts {
		opt(&cfg)
	}

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

	env := &handlerEnv{
		sources:  persistence.NewGormIntegrationSourceRepository(db),
		records:  persistence.NewGormIntegrationRecordRepository(db),
		mappings: persistence.NewGormFieldMappingRepository(db),
		runs:     persistence.NewGormSyncRunRepository(db),
		lock:     cache.NewInMemoryRunLock(),
		adapter:  &fixedAdapter{},
	}

	registry := connector.NewRegistry()
	registry.RegisterPushOnly(integration.SystemTypeManual, []string{connector.ManualEntityType})
	registry.RegisterPushOnly(integration.SystemTypeCSV, []string{connector.CSVEntityType})
	registry.Register(integration.SystemTypeServiceNow, []string{"incident"}, func(*integration.IntegrationSource) (integration.SystemAdapter, error) {
		return env.adapter, nil
	})

	engine := integrationapp.NewMappingEngine(env.mappings, nil)
	sourceSvc := integrationapp.NewSourceService(env.sources, env.records, env.runs, nil,
		integrationapp.WithSourceRunLock(env.lock))
	mappingSvc := integrationapp.NewMappingService(env.sources, env.mappings, nil)
	dashboardSvc := integrationapp.NewDashboardService(env.sources, env.records, env.mappings, env.runs, registry)
	syncSvc := integrationapp.NewSyncService(env.sources, env.runs, env.records, engine, registry, env.lock,
		cfg.dispatcher, integrationapp.DefaultSyncConfig())
	importSvc := integrationapp.NewImportService(env.sources, env.runs, env.records, engine, env.lock,
		integrationapp.DefaultImportConfig())

	sourceH := NewIntegrationSourceHandler(sourceSvc, dashboardSvc)
	syncH := NewSyncHandler(syncSvc)
	importH := NewImportHandler(importSvc)
	mappingH := NewMappingHandler(mappingSvc)

	r := gin.New()
	g := r.Group("/integration")
	g.GET("/dashboard", sourceH.GetDashboard)
	g.GET("/sources", sourceH.ListSources)
	g.POST("/sources", sourceH.CreateSource)
	g.GET("/sources/:id", sourceH.GetSource)
	g.PUT("/sources/:id", sourceH.UpdateSource)
	g.DELETE("/sources/:id", sourceH.DeleteSource)
	g.POST("/sources/:id/activate", sourceH.ActivateSource)
	g.POST("/sources/:id/disable", sourceH.DisableSource)
	g.GET("/sources/:id/records", sourceH.ListRecords)
	g.POST("/sources/:id/records/manual", importH.ImportManual)
	g.POST("/sources/:id/records/import", importH.ImportCSV)
	g.POST("/sources/:id/sync", syncH.TriggerSync)
	g.GET("/sources/:id/runs", syncH.ListRuns)
	g.GET("/sources/:id/mappings", mappingH.ListMappings)
	g.POST("/sources/:id/mappings", mappingH.CreateMapping)
	g.POST("/sources/:id/mappings/defaults", mappingH.SeedDefaultMappings)
	g.GET("/records/:id", sourceH.GetRecord)
	g.GET("/runs/:id", syncH.GetRun)
	g.POST("/runs/:id/cancel", syncH.CancelRun)
	g.GET("/mappings/:id", mappingH.GetMapping)
	g.PUT("/mappings/:id", mappingH.UpdateMapping)
	g.DELETE("/mappings/:id", mappingH.DeleteMapping)
	g.POST("/mappings/:id/validate", mappingH.ValidateMapping)
	env.engine = r

	return env
}

// source saves a source directly through the repository
func (e *handlerEnv) source(t *testing.T, name string, systemType integration.SystemType, activate bool) *integration.IntegrationSource {
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

func (e *handlerEnv) mapping(t *testing.T, sourceID uuid.UUID, spec integration.FieldMappingSpec) *integration.FieldMapping {
	t.Helper()
	m, err := integration.NewFieldMapping(sourceID, spec)
	require.NoError(t, err)
	require.NoError(t, e.mappings.Save(context.Background(), m))
	return m
}

// do sends a request with an optional JSON body
func (e *handlerEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

// apiResponse decodes the envelope, keeping data raw for typed decoding
type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	resp := decode(t, w)
	require.True(t, resp.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

// requireError asserts the status and error code of a failed request
func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := decode(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, code, resp.Error.Code)
}

// fixedAdapter returns the same records on every fetch
type fixedAdapter struct {
	records []integration.RawExternalRecord
	err     error
}

func (a *fixedAdapter) SystemType() integration.SystemType { return integration.SystemTypeServiceNow }

func (a *fixedAdapter) EntityTypes() []string { return []string{"incident"} }

func (a *fixedAdapter) FetchRecords(context.Context, *time.Time) ([]integration.RawExternalRecord, error) {
	return a.records, a.err
}

// inlineDispatcher runs the job before Dispatch returns
type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(_ uuid.UUID, job func(ctx context.Context)) error {
	job(context.Background())
	return nil
}

// rejectingDispatcher refuses every job
type rejectingDispatcher struct{ err error }

func (d rejectingDispatcher) Dispatch(uuid.UUID, func(ctx context.Context)) error { return d.err }

func strPtr(s string) *string { return &s }
