package connector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// ErrSourceMissingAPIURL is returned when a pull adapter is built for a source without an API URL
var ErrSourceMissingAPIURL = errors.New("connector: source has no API URL")

// Factory builds the adapter serving one source
type Factory func(source *integration.IntegrationSource) (integration.SystemAdapter, error)

type registration struct {
	entityTypes []string
	// factory is nil for push-only system types
	factory Factory
}

// Registry selects adapters by system type
type Registry struct {
	mu      sync.RWMutex
	entries map[integration.SystemType]registration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[integration.SystemType]registration)}
}

// Register adds a pull adapter factory for a system type, replacing any previous one
func (r *Registry) Register(systemType integration.SystemType, entityTypes []string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[systemType] = registration{entityTypes: entityTypes, factory: factory}
}

// RegisterPushOnly declares a system type that only receives imported records
func (r *Registry) RegisterPushOnly(systemType integration.SystemType, entityTypes []string) {
	r.Register(systemType, entityTypes, nil)
}

// Adapter builds the adapter for a source
func (r *Registry) Adapter(source *integration.IntegrationSource) (integration.SystemAdapter, error) {
	r.mu.RLock()
	entry, ok := r.entries[source.SystemType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrAdapterNotRegistered, source.SystemType)
	}
	if entry.factory == nil {
		return nil, integration.ErrSyncNotSupported
	}
	return entry.factory(source)
}

// EntityTypes returns the entity types declared for a system type
func (r *Registry) EntityTypes(systemType integration.SystemType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.entries[systemType].entityTypes...)
}

// SupportsPull reports whether a system type has a pull adapter
func (r *Registry) SupportsPull(systemType integration.SystemType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[systemType]
	return ok && entry.factory != nil
}

// NewDefaultRegistry registers the four vendor connectors and the push-only types
func NewDefaultRegistry(cfg Config, logger *zap.Logger) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := NewRegistry()
	r.Register(integration.SystemTypeServiceNow, serviceNowTables,
		pullFactory(func(url string) integration.SystemAdapter { return NewServiceNowAdapter(url, cfg, logger) }))
	r.Register(integration.SystemTypeJira, jiraEntityTypes,
		pullFactory(func(url string) integration.SystemAdapter { return NewJiraAdapter(url, cfg, logger) }))
	r.Register(integration.SystemTypeAsana, []string{AsanaEntityTask, AsanaEntityProject, AsanaEntityMilestone},
		pullFactory(func(url string) integration.SystemAdapter { return NewAsanaAdapter(url, cfg, logger) }))
	r.Register(integration.SystemTypeSAP, (&SAPAdapter{}).EntityTypes(),
		pullFactory(func(url string) integration.SystemAdapter { return NewSAPAdapter(url, cfg, logger) }))
	r.RegisterPushOnly(integration.SystemTypeManual, []string{ManualEntityType})
	r.RegisterPushOnly(integration.SystemTypeCSV, []string{CSVEntityType})
	return r, nil
}

func pullFactory(build func(apiURL string) integration.SystemAdapter) Factory {
	return func(source *integration.IntegrationSource) (integration.SystemAdapter, error) {
		if source.APIURL == nil || *source.APIURL == "" {
			return nil, ErrSourceMissingAPIURL
		}
		return build(*source.APIURL), nil
	}
}

// Ensure Registry implements integration.AdapterRegistry
var _ integration.AdapterRegistry = (*Registry)(nil)
