package connector

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// Jira issue types kept by the adapter; other issue types are skipped
var jiraEntityTypes = []string{"bug", "story", "task", "epic"}

// jiraTimeLayout is the JQL date format
const jiraTimeLayout = "2006/01/02 15:04"

type jiraSearchResponse struct {
	StartAt    int              `json:"startAt"`
	MaxResults int              `json:"maxResults"`
	Total      int              `json:"total"`
	Issues     []map[string]any `json:"issues"`
}

// JiraAdapter pulls issues through the Jira REST search API
type JiraAdapter struct {
	client   *apiClient
	pageSize int
	logger   *zap.Logger
}

// NewJiraAdapter creates an adapter for the Jira site at apiURL
func NewJiraAdapter(apiURL string, cfg Config, logger *zap.Logger) *JiraAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JiraAdapter{
		client:   newAPIClient(integration.SystemTypeJira, apiURL, cfg, logger),
		pageSize: cfg.PageSize,
		logger:   logger,
	}
}

// SystemType returns jira
func (a *JiraAdapter) SystemType() integration.SystemType {
	return integration.SystemTypeJira
}

// EntityTypes returns the kept issue types
func (a *JiraAdapter) EntityTypes() []string {
	return append([]string(nil), jiraEntityTypes...)
}

// FetchRecords runs one JQL search, oldest update first
func (a *JiraAdapter) FetchRecords(ctx context.Context, since *time.Time) ([]integration.RawExternalRecord, error) {
	jql := "ORDER BY updated ASC"
	if since != nil {
		jql = `updated >= "` + since.UTC().Format(jiraTimeLayout) + `" ` + jql
	}

	var records []integration.RawExternalRecord
	skipped := 0
	for page, startAt := 1, 0; ; page++ {
		query := url.Values{}
		query.Set("jql", jql)
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(a.pageSize))
		query.Set("fields", "*all")

		var resp jiraSearchResponse
		if err := a.client.getJSON(ctx, "search issues", page, "/rest/api/3/search", query, &resp); err != nil {
			return nil, err
		}

		for _, issue := range resp.Issues {
			entity, ok := classifyJiraIssue(issue)
			if !ok {
				skipped++
				continue
			}
			records = append(records, integration.RawExternalRecord{
				ExternalID: stringField(issue, "key"),
				EntityType: entity,
				Data:       issue,
			})
		}

		startAt += len(resp.Issues)
		if len(resp.Issues) == 0 || startAt >= resp.Total {
			break
		}
	}

	if skipped > 0 {
		a.logger.Debug("skipped jira issues of other types", zap.Int("count", skipped))
	}
	return records, nil
}

func classifyJiraIssue(issue map[string]any) (string, bool) {
	fields, _ := issue["fields"].(map[string]any)
	issueType, _ := fields["issuetype"].(map[string]any)
	name := strings.ToLower(strings.TrimSpace(stringField(issueType, "name")))
	for _, t := range jiraEntityTypes {
		if name == t {
			return t, true
		}
	}
	return "", false
}
