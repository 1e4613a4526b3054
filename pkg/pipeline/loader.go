package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/greenops/esg-reporting/pkg/table"
)

// Format identifies a supported tabular serialization.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatTSV    Format = "tsv"
	FormatXLSX   Format = "xlsx"
	FormatNDJSON Format = "ndjson"
)

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "ndjson", "jsonl":
		return FormatNDJSON, nil
	default:
		return "", &FormatError{Detail: fmt.Sprintf("unknown format %q", s)}
	}
}

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".ndjson", ".jsonl":
		return FormatNDJSON, nil
	default:
		return "", &FormatError{Detail: fmt.Sprintf("unsupported file extension %q", filepath.Ext(path))}
	}
}

// LoadOptions configures a Loader call. The zero value detects the format
// from the file extension and applies no size limit.
type LoadOptions struct {
	// Format forces a serialization; empty means detect from the path.
	Format Format
	// MaxBytes rejects inputs larger than this many bytes when positive.
	MaxBytes int64
}

// LoadFile reads a tabular file into a record table. The file handle is
// closed on every exit path. Missing inputs yield *NotFoundError and
// unparseable content yields *FormatError.
func LoadFile(path string, opts LoadOptions) (*table.Table, error) {
	format := opts.Format
	if format == "" {
		var err error
		format, err = DetectFormat(path)
		if err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Path: path, Err: err}
		}
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	if opts.MaxBytes > 0 {
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		if info.Size() > opts.MaxBytes {
			return nil, &FormatError{
				Format: format,
				Detail: fmt.Sprintf("input %s is %d bytes, limit %d", path, info.Size(), opts.MaxBytes),
			}
		}
	}

	return Load(f, format)
}

// Load reads a tabular byte stream into a record table. Column types are
// inferred from content: a column is numeric only when every non-null cell
// parses as a number; otherwise it falls back to string.
func Load(r io.Reader, format Format) (*table.Table, error) {
	switch format {
	case FormatCSV:
		return loadDelimited(r, ',')
	case FormatTSV:
		return loadDelimited(r, '\t')
	case FormatXLSX:
		return loadXLSX(r)
	case FormatNDJSON:
		return loadNDJSON(r)
	default:
		return nil, &FormatError{Format: format, Detail: "unsupported input format"}
	}
}

func loadDelimited(r io.Reader, comma rune) (*table.Table, error) {
	format := FormatCSV
	if comma == '\t' {
		format = FormatTSV
	}

	cr := csv.NewReader(stripBOM(r))
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &FormatError{Format: format, Detail: "input is empty"}
	}
	if err != nil {
		return nil, &FormatError{Format: format, Detail: "read header", Err: err}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &FormatError{Format: format, Detail: "read row", Err: err}
		}
		if len(rec) > len(header) {
			return nil, &FormatError{
				Format: format,
				Detail: fmt.Sprintf("row %d has %d cells, header has %d", len(rows)+1, len(rec), len(header)),
			}
		}
		rows = append(rows, rec)
	}

	t, err := table.FromRaw(header, rows)
	if err != nil {
		return nil, &FormatError{Format: format, Err: err}
	}
	return t, nil
}

func loadXLSX(r io.Reader) (*table.Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &FormatError{Format: FormatXLSX, Detail: "open workbook", Err: err}
	}
	defer func() {
		_ = wb.Close()
	}()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, &FormatError{Format: FormatXLSX, Detail: "workbook has no sheets"}
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, &FormatError{Format: FormatXLSX, Detail: "read sheet " + sheets[0], Err: err}
	}
	if len(rows) == 0 {
		return nil, &FormatError{Format: FormatXLSX, Detail: "sheet " + sheets[0] + " is empty"}
	}

	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = strings.TrimSpace(cell)
	}
	t, err := table.FromRaw(header, rows[1:])
	if err != nil {
		return nil, &FormatError{Format: FormatXLSX, Err: err}
	}
	return t, nil
}

func loadNDJSON(r io.Reader) (*table.Table, error) {
	sc := bufio.NewScanner(stripBOM(r))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []map[string]any
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, &FormatError{Format: FormatNDJSON, Detail: fmt.Sprintf("line %d", line), Err: err}
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, &FormatError{Format: FormatNDJSON, Detail: "scan input", Err: err}
	}
	if len(records) == 0 {
		return nil, &FormatError{Format: FormatNDJSON, Detail: "input is empty"}
	}

	t, err := table.FromRecords(records)
	if err != nil {
		return nil, &FormatError{Format: FormatNDJSON, Err: err}
	}
	return t, nil
}

// stripBOM drops a UTF-8 byte order mark. Sustainability Manager exports
// are written with one.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err == nil && bytes.Equal(head, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	return br
}
