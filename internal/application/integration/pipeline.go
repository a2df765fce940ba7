package integration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Record outcomes
// ---------------------------------------------------------------------------

type outcomeKind int

const (
	outcomeSucceeded outcomeKind = iota
	outcomeFailed
)

// recordOutcome is what happened to one record of a run
type recordOutcome struct {
	kind       outcomeKind
	externalID string
	line       int
	reason     string
}

func succeeded(raw integration.RawExternalRecord) recordOutcome {
	return recordOutcome{kind: outcomeSucceeded, externalID: raw.ExternalID, line: raw.Line}
}

func failed(raw integration.RawExternalRecord, reason string) recordOutcome {
	return recordOutcome{kind: outcomeFailed, externalID: raw.ExternalID, line: raw.Line, reason: reason}
}

// applyTo folds the outcome into the run counters
func (o recordOutcome) applyTo(run *integration.SyncRun) error {
	if o.kind == outcomeSucceeded {
		return run.RecordSucceeded()
	}
	return run.RecordFailed(integration.RecordFailure{
		ExternalID: o.externalID,
		Line:       o.line,
		Reason:     o.reason,
	})
}

// ---------------------------------------------------------------------------
// Record pipeline
// ---------------------------------------------------------------------------

// recordPipeline maps one raw record and writes it to the record store.
// Scheduled syncs and imports share it.
type recordPipeline struct {
	engine  *MappingEngine
	records integration.IntegrationRecordWriter
	logger  *zap.Logger
}

// process returns the outcome of one record. A non-nil error is fatal to the run:
// the mapping store or the record store could not be reached.
func (p *recordPipeline) process(ctx context.Context, sourceID uuid.UUID, raw integration.RawExternalRecord) (recordOutcome, error) {
	if strings.TrimSpace(raw.ExternalID) == "" || strings.TrimSpace(raw.EntityType) == "" {
		reason := raw.RejectReason
		if reason == "" {
			reason = "missing external id"
		}
		return failed(raw, reason), nil
	}

	if raw.IsRejected() {
		if err := p.upsertFailed(ctx, sourceID, raw, raw.RejectReason); err != nil {
			return recordOutcome{}, err
		}
		return failed(raw, raw.RejectReason), nil
	}

	result, err := p.engine.Transform(ctx, sourceID, raw.EntityType, raw.Data)
	if err != nil {
		return recordOutcome{}, err
	}

	if result.HasRequiredErrors() {
		reason := result.FailureReason()
		if err := p.upsertFailed(ctx, sourceID, raw, reason); err != nil {
			return recordOutcome{}, err
		}
		return failed(raw, reason), nil
	}

	for _, mErr := range result.Errors {
		p.logger.Debug("optional field mapping skipped",
			zap.String("source_id", sourceID.String()),
			zap.String("external_id", raw.ExternalID),
			zap.String("internal_field", mErr.InternalField),
			zap.String("code", mErr.Code))
	}

	_, err = p.records.Upsert(ctx, integration.RecordUpsert{
		SourceID:       sourceID,
		ExternalID:     raw.ExternalID,
		ExternalEntity: raw.EntityType,
		ExternalData:   raw.Data,
		MappedData:     result.MappedData,
		Status:         integration.RecordSyncCompleted,
	})
	if err != nil {
		return recordOutcome{}, fmt.Errorf("upsert record %s: %w", raw.ExternalID, err)
	}
	return succeeded(raw), nil
}

func (p *recordPipeline) upsertFailed(ctx context.Context, sourceID uuid.UUID, raw integration.RawExternalRecord, reason string) error {
	_, err := p.records.Upsert(ctx, integration.RecordUpsert{
		SourceID:       sourceID,
		ExternalID:     raw.ExternalID,
		ExternalEntity: raw.EntityType,
		ExternalData:   raw.Data,
		Status:         integration.RecordSyncFailed,
		Error:          reason,
	})
	if err != nil {
		return fmt.Errorf("upsert failed record %s: %w", raw.ExternalID, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Run guard
// ---------------------------------------------------------------------------

// runGuard enforces one running run per source
type runGuard struct {
	lock integration.RunLock
	runs integration.SyncRunRepository
	ttl  time.Duration
}

// begin takes the source lock and persists a new running run.
// release must be called once the run has been finished.
func (g *runGuard) begin(ctx context.Context, sourceID uuid.UUID, syncType integration.SyncType) (*integration.SyncRun, func(), error) {
	token, ok, err := g.lock.TryLock(ctx, sourceID, g.ttl)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, nil, integration.ErrSyncAlreadyRunning
	}
	release := func() {
		_ = g.lock.Unlock(context.Background(), sourceID, token)
	}

	running, err := g.runs.ExistsRunning(ctx, sourceID)
	if err != nil {
		release()
		return nil, nil, err
	}
	if running {
		release()
		return nil, nil, integration.ErrSyncAlreadyRunning
	}

	run, err := integration.NewSyncRun(sourceID, syncType)
	if err != nil {
		release()
		return nil, nil, err
	}
	if err := g.runs.Save(ctx, run); err != nil {
		release()
		return nil, nil, err
	}
	return run, release, nil
}
