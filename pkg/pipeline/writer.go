package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/greenops/esg-reporting/pkg/table"
)

// xlsxMaxColumns is the sheet column limit of the XLSX format.
const xlsxMaxColumns = 16384

// WriteFile serializes a table to a file. The format is detected from the
// path when not forced. The file handle is closed on every exit path.
func WriteFile(t *table.Table, path string, format Format) error {
	if format == "" {
		var err error
		format, err = DetectFormat(path)
		if err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(t, f, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write serializes a table to a stream. Output column order matches the
// table's current column order.
func Write(t *table.Table, w io.Writer, format Format) error {
	switch format {
	case FormatCSV:
		return writeDelimited(t, w, ',')
	case FormatTSV:
		return writeDelimited(t, w, '\t')
	case FormatXLSX:
		return writeXLSX(t, w)
	case FormatNDJSON:
		return writeNDJSON(t, w)
	default:
		return &FormatError{Format: format, Detail: "unsupported output format"}
	}
}

func writeDelimited(t *table.Table, w io.Writer, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma

	if err := cw.Write(t.ColumnNames()); err != nil {
		return err
	}
	rec := make([]string, t.NumCols())
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		for j, v := range row {
			rec[j] = v.Format()
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(t *table.Table, w io.Writer) error {
	if t.NumCols() > xlsxMaxColumns {
		return &FormatError{
			Format: FormatXLSX,
			Detail: fmt.Sprintf("table has %d columns, sheet limit is %d", t.NumCols(), xlsxMaxColumns),
		}
	}

	wb := excelize.NewFile()
	defer func() {
		_ = wb.Close()
	}()
	sheet := wb.GetSheetName(0)

	header := make([]any, t.NumCols())
	for j, name := range t.ColumnNames() {
		header[j] = name
	}
	if err := wb.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = cellForXLSX(v)
		}
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, addr, &cells); err != nil {
			return err
		}
	}
	return wb.Write(w)
}

func cellForXLSX(v table.Value) any {
	if v.IsNull() {
		return nil
	}
	if n, ok := v.NumberValue(); ok {
		return n
	}
	if b, ok := v.BoolValue(); ok {
		return b
	}
	return v.Format()
}

func writeNDJSON(t *table.Table, w io.Writer) error {
	enc := json.NewEncoder(w)
	names := t.ColumnNames()
	for i := 0; i < t.NumRows(); i++ {
		row := t.Row(i)
		rec := make(map[string]any, len(names))
		for j, v := range row {
			rec[names[j]] = cellForJSON(v)
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func cellForJSON(v table.Value) any {
	if v.IsNull() {
		return nil
	}
	if n, ok := v.NumberValue(); ok {
		return n
	}
	if b, ok := v.BoolValue(); ok {
		return b
	}
	return v.Format()
}
