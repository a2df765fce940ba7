package connector

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// ServiceNow tables synced by the adapter, in fetch order
var serviceNowTables = []string{"incident", "change_request", "problem"}

// serviceNowTimeLayout is the format of sys_updated_on in encoded queries
const serviceNowTimeLayout = "2006-01-02 15:04:05"

type serviceNowListResponse struct {
	Result []map[string]any `json:"result"`
}

// ServiceNowAdapter pulls records through the ServiceNow Table API
type ServiceNowAdapter struct {
	client   *apiClient
	pageSize int
}

// NewServiceNowAdapter creates an adapter for the instance at apiURL
func NewServiceNowAdapter(apiURL string, cfg Config, logger *zap.Logger) *ServiceNowAdapter {
	return &ServiceNowAdapter{
		client:   newAPIClient(integration.SystemTypeServiceNow, apiURL, cfg, logger),
		pageSize: cfg.PageSize,
	}
}

// SystemType returns servicenow
func (a *ServiceNowAdapter) SystemType() integration.SystemType {
	return integration.SystemTypeServiceNow
}

// EntityTypes returns the synced tables
func (a *ServiceNowAdapter) EntityTypes() []string {
	return append([]string(nil), serviceNowTables...)
}

// FetchRecords pages through every table. Records are classified by table.
func (a *ServiceNowAdapter) FetchRecords(ctx context.Context, since *time.Time) ([]integration.RawExternalRecord, error) {
	var records []integration.RawExternalRecord
	for _, table := range serviceNowTables {
		rows, err := a.fetchTable(ctx, table, since)
		if err != nil {
			return nil, err
		}
		records = append(records, rows...)
	}
	return records, nil
}

func (a *ServiceNowAdapter) fetchTable(ctx context.Context, table string, since *time.Time) ([]integration.RawExternalRecord, error) {
	encoded := "ORDERBYsys_updated_on"
	if since != nil {
		encoded = "sys_updated_on>=" + since.UTC().Format(serviceNowTimeLayout) + "^" + encoded
	}

	var records []integration.RawExternalRecord
	for page, offset := 1, 0; ; page++ {
		query := url.Values{}
		query.Set("sysparm_query", encoded)
		query.Set("sysparm_limit", strconv.Itoa(a.pageSize))
		query.Set("sysparm_offset", strconv.Itoa(offset))
		query.Set("sysparm_display_value", "false")
		query.Set("sysparm_exclude_reference_link", "true")

		var resp serviceNowListResponse
		if err := a.client.getJSON(ctx, "fetch "+table, page, "/api/now/table/"+table, query, &resp); err != nil {
			return nil, err
		}

		for _, row := range resp.Result {
			id := stringField(row, "number")
			if id == "" {
				id = stringField(row, "sys_id")
			}
			records = append(records, integration.RawExternalRecord{
				ExternalID: id,
				EntityType: table,
				Data:       row,
			})
		}

		if len(resp.Result) < a.pageSize {
			return records, nil
		}
		offset += len(resp.Result)
	}
}
