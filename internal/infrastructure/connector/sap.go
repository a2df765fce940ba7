package connector

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// sapEntitySet describes one OData entity set pulled from SAP
type sapEntitySet struct {
	EntityType string
	Name       string
	// Key is the property holding the record identity
	Key string
}

var sapEntitySets = []sapEntitySet{
	{EntityType: "employee", Name: "A_Employee", Key: "PersonWorkAgreement"},
	{EntityType: "cost_center", Name: "A_CostCenter", Key: "CostCenter"},
	{EntityType: "purchase_order", Name: "A_PurchaseOrder", Key: "PurchaseOrder"},
}

// odataResponse accepts both the OData v2 ("d.results") and v4 ("value") envelopes
type odataResponse struct {
	D *struct {
		Results []map[string]any `json:"results"`
	} `json:"d"`
	Value []map[string]any `json:"value"`
}

func (r odataResponse) rows() []map[string]any {
	if r.D != nil {
		return r.D.Results
	}
	return r.Value
}

// SAPAdapter pulls entity sets from an SAP OData service
type SAPAdapter struct {
	client   *apiClient
	pageSize int
}

// NewSAPAdapter creates an adapter for the OData service root at apiURL
func NewSAPAdapter(apiURL string, cfg Config, logger *zap.Logger) *SAPAdapter {
	return &SAPAdapter{
		client:   newAPIClient(integration.SystemTypeSAP, apiURL, cfg, logger),
		pageSize: cfg.PageSize,
	}
}

// SystemType returns sap
func (a *SAPAdapter) SystemType() integration.SystemType {
	return integration.SystemTypeSAP
}

// EntityTypes returns the synced entity sets
func (a *SAPAdapter) EntityTypes() []string {
	types := make([]string, 0, len(sapEntitySets))
	for _, set := range sapEntitySets {
		types = append(types, set.EntityType)
	}
	return types
}

// FetchRecords pages through every entity set with $top/$skip
func (a *SAPAdapter) FetchRecords(ctx context.Context, since *time.Time) ([]integration.RawExternalRecord, error) {
	var records []integration.RawExternalRecord
	for _, set := range sapEntitySets {
		rows, err := a.fetchSet(ctx, set, since)
		if err != nil {
			return nil, err
		}
		records = append(records, rows...)
	}
	return records, nil
}

func (a *SAPAdapter) fetchSet(ctx context.Context, set sapEntitySet, since *time.Time) ([]integration.RawExternalRecord, error) {
	var records []integration.RawExternalRecord
	for page, skip := 1, 0; ; page++ {
		query := url.Values{}
		query.Set("$format", "json")
		query.Set("$top", strconv.Itoa(a.pageSize))
		query.Set("$skip", strconv.Itoa(skip))
		if since != nil {
			query.Set("$filter", "LastChangeDateTime ge datetimeoffset'"+since.UTC().Format(time.RFC3339)+"'")
		}

		var resp odataResponse
		if err := a.client.getJSON(ctx, "fetch "+set.Name, page, "/"+set.Name, query, &resp); err != nil {
			return nil, err
		}

		rows := resp.rows()
		for _, row := range rows {
			delete(row, "__metadata")
			rec := integration.RawExternalRecord{
				ExternalID: stringField(row, set.Key),
				EntityType: set.EntityType,
				Data:       row,
			}
			if rec.ExternalID == "" {
				rec.RejectReason = "missing key property " + set.Key
			}
			records = append(records, rec)
		}

		if len(rows) < a.pageSize {
			return records, nil
		}
		skip += len(rows)
	}
}
