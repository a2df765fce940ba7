package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	integrationapp "github.com/staffhub/backend/internal/application/integration"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serviceNowStub serves incidents from the Table API and nothing for the other tables
func serviceNowStub(t *testing.T, incidents []map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		result := []map[string]any{}
		if strings.HasSuffix(r.URL.Path, "/incident") && r.URL.Query().Get("sysparm_offset") == "0" {
			result = incidents
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestSyncFlow_ServiceNowToPostgres(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	srv, calls := serviceNowStub(t, []map[string]any{
		{"number": "INC0010001", "sys_id": "a1", "short_description": "Nurse call system down", "priority": "1"},
		{"number": "INC0010002", "sys_id": "a2", "short_description": "", "priority": "3"},
	})
	source := h.db.CreateSource("Hospital ServiceNow", integration.SystemTypeServiceNow, srv.URL, true)

	_, err := h.mapping.CreateMapping(ctx, source.ID, integrationapp.MappingInput{
		ExternalEntity: "incident",
		ExternalField:  "short_description",
		InternalField:  "title",
		Required:       true,
	})
	require.NoError(t, err)
	_, err = h.mapping.CreateMapping(ctx, source.ID, integrationapp.MappingInput{
		ExternalEntity: "incident",
		ExternalField:  "priority",
		InternalField:  "priority",
		TransformType:  integration.TransformEnumTranslate,
		EnumValues:     map[string]string{"1": "critical", "3": "moderate"},
	})
	require.NoError(t, err)

	started, err := h.syncs.TriggerSync(ctx, source.ID, integration.SyncTypeFull)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncRunStatusRunning, started.Status)

	run := h.waitForRun(t, *started)
	assert.Equal(t, integration.SyncRunStatusPartial, run.Status)
	assert.Equal(t, 2, run.RecordsProcessed)
	assert.Equal(t, 1, run.RecordsSucceeded)
	assert.Equal(t, 1, run.RecordsFailed)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "INC0010002", run.Failures[0].ExternalID)
	assert.Positive(t, calls.Load())

	good, err := h.records.FindByExternalID(ctx, source.ID, "INC0010001")
	require.NoError(t, err)
	assert.Equal(t, integration.RecordSyncCompleted, good.SyncStatus)
	assert.Equal(t, "Nurse call system down", good.MappedData["title"])
	assert.Equal(t, "critical", good.MappedData["priority"])

	bad, err := h.records.FindByExternalID(ctx, source.ID, "INC0010002")
	require.NoError(t, err)
	assert.Equal(t, integration.RecordSyncFailed, bad.SyncStatus)
	assert.NotEmpty(t, bad.SyncError)

	updated, err := h.sources.FindByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.LastSyncPartial, updated.LastSyncStatus)
	assert.NotNil(t, updated.LastSyncAt)
}

func TestSyncFlow_AdapterFailureFailsRun(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	source := h.db.CreateSource("Locked ServiceNow", integration.SystemTypeServiceNow, srv.URL, true)

	started, err := h.syncs.TriggerSync(ctx, source.ID, integration.SyncTypeIncremental)
	require.NoError(t, err)

	run := h.waitForRun(t, *started)
	assert.Equal(t, integration.SyncRunStatusFailed, run.Status)
	assert.NotEmpty(t, run.ErrorMessage)

	updated, err := h.sources.FindByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.LastSyncFailed, updated.LastSyncStatus)
}

func TestSyncFlow_RecoverStaleRuns(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	source := h.db.CreateSource("Crashed Jira", integration.SystemTypeJira, "https://jira.example.org", true)
	orphan, err := integration.NewSyncRun(source.ID, integration.SyncTypeFull)
	require.NoError(t, err)
	require.NoError(t, h.runs.Save(ctx, orphan))

	recovered, err := h.syncs.RecoverStaleRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	run, err := h.runs.FindByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncRunStatusFailed, run.Status)

	updated, err := h.sources.FindByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.LastSyncFailed, updated.LastSyncStatus)
}

func TestImportFlow_CSVToPostgres(t *testing.T) {
	h := newHub(t)
	ctx := context.Background()

	source := h.db.CreateSource("Agency roster", integration.SystemTypeCSV, "", true)
	_, err := h.mapping.CreateMapping(ctx, source.ID, integrationapp.MappingInput{
		ExternalEntity: connector.CSVEntityType,
		ExternalField:  "Shift",
		InternalField:  "title",
		Required:       true,
	})
	require.NoError(t, err)

	csv := "external_id,Shift,Ward\n" +
		"R-1,Night float,ICU\n" +
		"R-2,,ER\n" +
		"R-1,Night float (updated),ICU\n"

	result, err := h.imports.ImportCSV(ctx, source.ID, integrationapp.ImportCSVInput{
		FileName: "roster.csv",
		Reader:   strings.NewReader(csv),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 2, result.ImportedRows)
	assert.Equal(t, 1, result.FailedRows)
	assert.Equal(t, integration.SyncRunStatusPartial, result.Status)

	count, err := h.records.CountBySource(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	record, err := h.records.FindByExternalID(ctx, source.ID, "R-1")
	require.NoError(t, err)
	assert.Equal(t, "Night float (updated)", record.MappedData["title"])

	run, err := h.runs.FindByID(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncTypeManual, run.SyncType)
}
