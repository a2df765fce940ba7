// Package integration contains the Integration Hub bounded context.
// It models connections to external systems (ServiceNow, Asana, SAP, Jira) and
// the records pulled from them, normalized through configurable field mappings.
//
// Key concepts:
//   - IntegrationSource: one configured connection to an external system
//   - FieldMapping: a rule translating one external field into one internal field
//   - IntegrationRecord: the internal representation of one external entity, keyed by
//     (source, external id)
//   - SyncRun: one execution of pulling, transforming and storing records for a source
//   - SystemAdapter: port for fetching raw records from one kind of external system
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
