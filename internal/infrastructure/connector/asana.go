package connector

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// Asana entity types
const (
	AsanaEntityTask      = "task"
	AsanaEntityProject   = "project"
	AsanaEntityMilestone = "milestone"
)

const (
	asanaProjectFields = "name,notes,archived,color,modified_at,owner.name,workspace.name"
	asanaTaskFields    = "name,notes,completed,completed_at,assignee.name,due_on,resource_subtype,modified_at,projects.name"
)

type asanaListResponse struct {
	Data     []map[string]any `json:"data"`
	NextPage *struct {
		Offset string `json:"offset"`
	} `json:"next_page"`
}

// AsanaAdapter pulls projects and their tasks through the Asana REST API
type AsanaAdapter struct {
	client    *apiClient
	pageSize  int
	workspace string
}

// NewAsanaAdapter creates an adapter for the Asana API at apiURL
func NewAsanaAdapter(apiURL string, cfg Config, logger *zap.Logger) *AsanaAdapter {
	pageSize := cfg.PageSize
	if pageSize > 100 {
		// Asana rejects larger pages
		pageSize = 100
	}
	return &AsanaAdapter{
		client:    newAPIClient(integration.SystemTypeAsana, apiURL, cfg, logger),
		pageSize:  pageSize,
		workspace: cfg.AsanaWorkspace,
	}
}

// SystemType returns asana
func (a *AsanaAdapter) SystemType() integration.SystemType {
	return integration.SystemTypeAsana
}

// EntityTypes returns task, project and milestone
func (a *AsanaAdapter) EntityTypes() []string {
	return []string{AsanaEntityTask, AsanaEntityProject, AsanaEntityMilestone}
}

// FetchRecords returns each project followed by its tasks changed since the watermark.
// A task listed in several projects is returned once.
func (a *AsanaAdapter) FetchRecords(ctx context.Context, since *time.Time) ([]integration.RawExternalRecord, error) {
	workspaces := []string{a.workspace}
	if a.workspace == "" {
		ws, err := a.list(ctx, "list workspaces", "/workspaces", url.Values{})
		if err != nil {
			return nil, err
		}
		workspaces = workspaces[:0]
		for _, w := range ws {
			workspaces = append(workspaces, stringField(w, "gid"))
		}
	}

	var records []integration.RawExternalRecord
	seenTasks := make(map[string]struct{})
	for _, workspace := range workspaces {
		q := url.Values{}
		q.Set("workspace", workspace)
		q.Set("opt_fields", asanaProjectFields)
		projects, err := a.list(ctx, "list projects", "/projects", q)
		if err != nil {
			return nil, err
		}

		for _, project := range projects {
			projectID := stringField(project, "gid")
			records = append(records, integration.RawExternalRecord{
				ExternalID: projectID,
				EntityType: AsanaEntityProject,
				Data:       project,
			})

			tq := url.Values{}
			tq.Set("project", projectID)
			tq.Set("opt_fields", asanaTaskFields)
			if since != nil {
				tq.Set("modified_since", since.UTC().Format(time.RFC3339))
			}
			tasks, err := a.list(ctx, "list tasks of project "+projectID, "/tasks", tq)
			if err != nil {
				return nil, err
			}

			for _, task := range tasks {
				id := stringField(task, "gid")
				if _, dup := seenTasks[id]; dup && id != "" {
					continue
				}
				seenTasks[id] = struct{}{}

				entity := AsanaEntityTask
				if stringField(task, "resource_subtype") == "milestone" {
					entity = AsanaEntityMilestone
				}
				records = append(records, integration.RawExternalRecord{
					ExternalID: id,
					EntityType: entity,
					Data:       task,
				})
			}
		}
	}
	return records, nil
}

// list follows the offset token until the last page
func (a *AsanaAdapter) list(ctx context.Context, operation, path string, query url.Values) ([]map[string]any, error) {
	var items []map[string]any
	query.Set("limit", strconv.Itoa(a.pageSize))
	for page := 1; ; page++ {
		var resp asanaListResponse
		if err := a.client.getJSON(ctx, operation, page, path, query, &resp); err != nil {
			return nil, err
		}
		items = append(items, resp.Data...)

		if resp.NextPage == nil || resp.NextPage.Offset == "" {
			return items, nil
		}
		query.Set("offset", resp.NextPage.Offset)
	}
}
