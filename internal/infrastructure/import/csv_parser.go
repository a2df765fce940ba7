package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Input encodings detected by the parser
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16       = "utf-16"
	EncodingWindows1252 = "windows-1252"
)

// CSVParser reads a CSV upload into header-keyed rows.
// Input is normalized to UTF-8 before parsing.
type CSVParser struct {
	delimiter rune
	trimSpace bool
	encoding  string
	headerMap map[string]int
	headers   []string
	totalRows int
	reader    *csv.Reader
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithTrimSpace controls trimming of leading/trailing spaces from fields
func WithTrimSpace(trim bool) ParserOption {
	return func(p *CSVParser) {
		p.trimSpace = trim
	}
}

// NewCSVParser creates a new CSV parser from a reader
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	parser := &CSVParser{
		delimiter: ',',
		trimSpace: true,
		headerMap: make(map[string]int),
	}
	for _, opt := range opts {
		opt(parser)
	}

	content, encoding, err := decodeInput(r)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrEmptyFile
	}
	parser.encoding = encoding

	parser.reader = csv.NewReader(bytes.NewReader(content))
	parser.reader.Comma = parser.delimiter
	parser.reader.TrimLeadingSpace = parser.trimSpace
	parser.reader.FieldsPerRecord = -1

	return parser, nil
}

// decodeInput returns the content as UTF-8 and the encoding it was read as.
// UTF-8 and UTF-16 byte order marks are honoured; other input that is not
// valid UTF-8 is read as Windows-1252.
func decodeInput(r io.Reader) ([]byte, string, error) {
	br := bufio.NewReader(r)
	bom, err := br.Peek(3)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}

	switch {
	case len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF:
		_, _ = br.Discard(3)
	case len(bom) >= 2 && ((bom[0] == 0xFF && bom[1] == 0xFE) || (bom[0] == 0xFE && bom[1] == 0xFF)):
		// ExpectBOM picks the byte order from the mark and strips it
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		data, err := io.ReadAll(transform.NewReader(br, dec))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
		}
		return data, EncodingUTF16, nil
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	if utf8.Valid(data) {
		return data, EncodingUTF8, nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	return decoded, EncodingWindows1252, nil
}

// Encoding returns the encoding the input was decoded from
func (p *CSVParser) Encoding() string {
	return p.encoding
}

// ParseHeader reads and parses the header row
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	p.headers = make([]string, 0, len(record))
	for i, h := range record {
		header := strings.TrimSpace(h)
		p.headers = append(p.headers, header)
		if header == "" {
			continue
		}
		if _, dup := p.headerMap[header]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidHeader, header)
		}
		p.headerMap[header] = i
	}

	if len(p.headerMap) == 0 {
		return ErrMissingHeader
	}
	return nil
}

// Headers returns the parsed header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// HasHeader checks if a header exists
func (p *CSVParser) HasHeader(name string) bool {
	_, ok := p.headerMap[name]
	return ok
}

// Row represents a parsed CSV row with its data and line number
type Row struct {
	LineNumber int
	Data       map[string]string
}

// Get returns the value for a column by header name
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// IsEmpty returns true if the row has no non-empty values
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadRow reads the next row. A malformed row is returned as a *RowError
// and the parser can keep reading after it.
func (p *CSVParser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}

	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		p.totalRows++
		rowErr := NewRowError(parseErr.StartLine, "", ErrCodeImportMalformedRow, parseErr.Err.Error())
		return nil, &rowErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	line, _ := p.reader.FieldPos(0)
	p.totalRows++

	row := &Row{
		LineNumber: line,
		Data:       make(map[string]string, len(p.headers)),
	}
	for i, header := range p.headers {
		if header == "" {
			continue
		}
		value := ""
		if i < len(record) {
			value = record[i]
			if p.trimSpace {
				value = strings.TrimSpace(value)
			}
		}
		row.Data[header] = value
	}
	return row, nil
}

// ReadAllRows reads the remaining rows. Blank rows are skipped and malformed
// rows are collected into errs instead of stopping the read.
func (p *CSVParser) ReadAllRows(errs *ErrorCollection) ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.ReadRow()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			errs.Add(*rowErr)
			continue
		}
		if err != nil {
			return rows, err
		}
		if row.IsEmpty() {
			p.totalRows--
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// TotalRows returns the number of non-blank data rows read, malformed ones included
func (p *CSVParser) TotalRows() int {
	return p.totalRows
}
