package backend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

const defaultSheet = "Sheet1"

// TabularToCSV exports the first sheet of a workbook, or a JSON table, as CSV
// without an index column.
type TabularToCSV struct{}

func NewTabularToCSV() *TabularToCSV { return &TabularToCSV{} }

func (b *TabularToCSV) Name() string { return registry.TabularToCSV }

func (b *TabularToCSV) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	var (
		rows [][]string
		err  error
	)
	switch source := format.FromFilename(inputPath); source {
	case format.XLSX:
		rows, err = readXLSX(inputPath)
	case format.XLS:
		rows, err = readXLS(inputPath)
	case format.JSON:
		rows, err = readJSONTable(inputPath)
	default:
		err = fmt.Errorf("cannot read %s as a table", source)
	}
	if err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}

	output := outputPath(outputDir, inputPath, format.CSV)
	if err := writeCSV(output, padRows(rows)); err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}
	return output, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("workbook has no sheets")
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return trimTrailingEmpty(rows), nil
}

// readJSONTable accepts records (array of objects), rows (array of arrays) or
// columns (object of arrays or of index-keyed objects). Column order follows
// first appearance in the document.
func readJSONTable(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid json document")
	}

	doc := gjson.ParseBytes(data)
	switch {
	case doc.IsArray():
		items := doc.Array()
		if len(items) > 0 && items[0].IsArray() {
			return jsonRows(items), nil
		}
		return jsonRecords(items)
	case doc.IsObject():
		return jsonColumns(doc)
	default:
		return nil, errors.New("json document is not a table")
	}
}

func jsonRecords(items []gjson.Result) ([][]string, error) {
	var columns []string
	index := make(map[string]int)
	records := make([]map[string]string, 0, len(items))

	for _, item := range items {
		if !item.IsObject() {
			return nil, errors.New("json array mixes records with other values")
		}
		record := make(map[string]string)
		item.ForEach(func(key, value gjson.Result) bool {
			k := key.String()
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
			record[k] = cellValue(value)
			return true
		})
		records = append(records, record)
	}

	rows := [][]string{columns}
	for _, record := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = record[c]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func jsonRows(items []gjson.Result) [][]string {
	width := 0
	for _, item := range items {
		if n := len(item.Array()); n > width {
			width = n
		}
	}

	header := make([]string, width)
	for i := range header {
		header[i] = strconv.Itoa(i)
	}
	rows := [][]string{header}
	for _, item := range items {
		var row []string
		for _, v := range item.Array() {
			row = append(row, cellValue(v))
		}
		rows = append(rows, row)
	}
	return rows
}

func jsonColumns(doc gjson.Result) ([][]string, error) {
	var (
		columns []string
		keys    []string
	)
	keyIndex := make(map[string]int)
	values := make(map[string]map[string]string)

	var walkErr error
	doc.ForEach(func(column, cells gjson.Result) bool {
		name := column.String()
		columns = append(columns, name)
		values[name] = make(map[string]string)

		add := func(key string, v gjson.Result) {
			if _, ok := keyIndex[key]; !ok {
				keyIndex[key] = len(keys)
				keys = append(keys, key)
			}
			values[name][key] = cellValue(v)
		}

		switch {
		case cells.IsArray():
			for i, v := range cells.Array() {
				add(strconv.Itoa(i), v)
			}
		case cells.IsObject():
			cells.ForEach(func(k, v gjson.Result) bool {
				add(k.String(), v)
				return true
			})
		default:
			walkErr = fmt.Errorf("column %q is not an array or object", name)
			return false
		}
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	rows := [][]string{columns}
	for _, key := range keys {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = values[c][key]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cellValue(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.JSON:
		return v.Raw
	default:
		return v.String()
	}
}

// padRows makes every row as wide as the widest one.
func padRows(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		if len(r) < width {
			rows[i] = append(r, make([]string, width-len(r))...)
		}
	}
	return rows
}

func trimTrailingEmpty(rows [][]string) [][]string {
	for len(rows) > 0 && strings.Join(rows[len(rows)-1], "") == "" {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return f.Close()
}

// CSVToTabular writes a CSV file into a single-sheet xlsx workbook. Body cells
// that parse as numbers are stored as numbers.
type CSVToTabular struct{}

func NewCSVToTabular() *CSVToTabular { return &CSVToTabular{} }

func (b *CSVToTabular) Name() string { return registry.CSVToTabular }

func (b *CSVToTabular) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	rows, err := readCSV(inputPath)
	if err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}

	output := outputPath(outputDir, inputPath, format.XLSX)
	if err := writeXLSX(output, rows); err != nil {
		return "", convert.NewBackendError(b.Name(), err)
	}
	return output, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

func writeXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		values := make([]interface{}, len(row))
		for j, cell := range row {
			values[j] = cell
			if i == 0 {
				continue
			}
			// NaN and infinities have no numeric cell form in OOXML.
			if n, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
				values[j] = n
			}
		}
		start, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(defaultSheet, start, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
