package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/staffhub/backend/internal/domain/integration"
	csvimport "github.com/staffhub/backend/internal/infrastructure/import"
)

// DefaultIdentityColumn is the CSV column holding the external id
const DefaultIdentityColumn = "external_id"

// CSVOptions configures a CSV upload
type CSVOptions struct {
	EntityType     string
	IdentityColumn string
}

// CSVAdapter turns the rows of one CSV upload into raw records.
// Rows without an identity and malformed rows are yielded as rejected records.
type CSVAdapter struct {
	reader    io.Reader
	opts      CSVOptions
	encoding  string
	rowErrors map[int]csvimport.RowError
}

// NewCSVAdapter wraps an upload
func NewCSVAdapter(r io.Reader, opts CSVOptions) *CSVAdapter {
	opts.EntityType = strings.TrimSpace(opts.EntityType)
	if opts.EntityType == "" {
		opts.EntityType = CSVEntityType
	}
	opts.IdentityColumn = strings.TrimSpace(opts.IdentityColumn)
	if opts.IdentityColumn == "" {
		opts.IdentityColumn = DefaultIdentityColumn
	}
	return &CSVAdapter{
		reader:    r,
		opts:      opts,
		rowErrors: make(map[int]csvimport.RowError),
	}
}

// SystemType returns csv
func (a *CSVAdapter) SystemType() integration.SystemType {
	return integration.SystemTypeCSV
}

// EntityTypes returns the entity type of the upload
func (a *CSVAdapter) EntityTypes() []string {
	return []string{a.opts.EntityType}
}

// Encoding returns the detected input encoding once the upload was read
func (a *CSVAdapter) Encoding() string {
	return a.encoding
}

// RowError returns the parse-level error of the rejected row at line
func (a *CSVAdapter) RowError(line int) (csvimport.RowError, bool) {
	e, ok := a.rowErrors[line]
	return e, ok
}

// FetchRecords parses the upload. File-level problems (empty file, no header,
// no identity column) are returned as errors; row problems are not.
func (a *CSVAdapter) FetchRecords(ctx context.Context, _ *time.Time) ([]integration.RawExternalRecord, error) {
	parser, err := csvimport.NewCSVParser(a.reader)
	if err != nil {
		return nil, err
	}
	a.encoding = parser.Encoding()

	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	if !parser.HasHeader(a.opts.IdentityColumn) {
		return nil, fmt.Errorf("%w: %q", csvimport.ErrMissingIdentityColumn, a.opts.IdentityColumn)
	}

	var records []integration.RawExternalRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := parser.ReadRow()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *csvimport.RowError
		if errors.As(err, &rowErr) {
			a.rowErrors[rowErr.Row] = *rowErr
			records = append(records, integration.RawExternalRecord{
				EntityType:   a.opts.EntityType,
				Line:         rowErr.Row,
				RejectReason: rowErr.Message,
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		if row.IsEmpty() {
			continue
		}

		data := make(map[string]any, len(row.Data))
		for k, v := range row.Data {
			data[k] = v
		}
		rec := integration.RawExternalRecord{
			ExternalID: row.Get(a.opts.IdentityColumn),
			EntityType: a.opts.EntityType,
			Data:       data,
			Line:       row.LineNumber,
		}
		if rec.ExternalID == "" {
			e := csvimport.NewRowError(row.LineNumber, a.opts.IdentityColumn, csvimport.ErrCodeImportRequiredField,
				fmt.Sprintf("field '%s' is required", a.opts.IdentityColumn))
			a.rowErrors[row.LineNumber] = e
			rec.RejectReason = e.Message
		}
		records = append(records, rec)
	}
	return records, nil
}
