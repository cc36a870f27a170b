// Package ingest reads test cases from Excel workbooks.
//
// The first non-blank row is treated as the header. Column names are
// matched case-insensitively and under common aliases, so "Test_ID",
// "test id" and "ID" all select the same column. Rows whose mapped cells
// are all blank are skipped.
package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// DefaultSheet is used when the caller does not name a sheet.
const DefaultSheet = "Sheet1"

// DefaultPriority is assumed for rows that leave the priority cell blank.
const DefaultPriority = "Medium"

const (
	colTestID = iota
	colDescription
	colModule
	colFunctionality
	colPriority
	colPrompt
	columnCount
)

var headerAliases = map[string]int{
	"test id":           colTestID,
	"testid":            colTestID,
	"test case id":      colTestID,
	"id":                colTestID,
	"short description": colDescription,
	"description":       colDescription,
	"test description":  colDescription,
	"summary":           colDescription,
	"module":            colModule,
	"functionality":     colFunctionality,
	"feature":           colFunctionality,
	"priority":          colPriority,
	"generated prompt":  colPrompt,
	"prompt":            colPrompt,
}

// ReadTestCases opens the workbook at path and returns the test cases on
// the named sheet. An empty sheet name selects DefaultSheet.
func ReadTestCases(path, sheet string) ([]models.TestCase, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errdefs.InvalidInput("file", fmt.Sprintf("cannot open workbook: %v", err))
	}
	defer f.Close()
	return readSheet(f, sheet)
}

// ParseWorkbook reads the workbook from r and returns the test cases on
// the named sheet. An empty sheet name selects DefaultSheet.
func ParseWorkbook(r io.Reader, sheet string) ([]models.TestCase, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errdefs.InvalidInput("file", fmt.Sprintf("not a valid workbook: %v", err))
	}
	defer f.Close()
	return readSheet(f, sheet)
}

func readSheet(f *excelize.File, sheet string) ([]models.TestCase, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	if !hasSheet(f, sheet) {
		return nil, errdefs.InvalidInput("sheet", fmt.Sprintf("sheet %q not found in workbook", sheet))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errdefs.InvalidInput("sheet", fmt.Sprintf("cannot read sheet %q: %v", sheet, err))
	}

	header := -1
	var columns [columnCount]int
	for i := range columns {
		columns[i] = -1
	}
	for i, row := range rows {
		if rowBlank(row) {
			continue
		}
		header = i
		for j, name := range row {
			if col, ok := headerAliases[normalizeHeader(name)]; ok && columns[col] == -1 {
				columns[col] = j
			}
		}
		break
	}
	if header == -1 {
		return []models.TestCase{}, nil
	}
	if columns[colTestID] == -1 {
		return nil, errdefs.InvalidInput("header", "missing required column: test id")
	}
	if columns[colDescription] == -1 {
		return nil, errdefs.InvalidInput("header", "missing required column: short description")
	}

	cases := []models.TestCase{}
	for i := header + 1; i < len(rows); i++ {
		row := rows[i]
		if rowBlank(row) {
			continue
		}
		id := cell(row, columns[colTestID])
		description := cell(row, columns[colDescription])
		// One-based row numbers match what the spreadsheet shows.
		if id == "" {
			return nil, errdefs.InvalidInput("test_id", fmt.Sprintf("row %d has no test id", i+1))
		}
		if description == "" {
			return nil, errdefs.InvalidInput("short_description", fmt.Sprintf("row %d has no description", i+1))
		}

		priority := cell(row, columns[colPriority])
		if priority == "" {
			priority = DefaultPriority
		}
		cases = append(cases, models.TestCase{
			ID:              id,
			Description:     description,
			Module:          cell(row, columns[colModule]),
			Functionality:   cell(row, columns[colFunctionality]),
			Priority:        priority,
			GeneratedPrompt: cell(row, columns[colPrompt]),
		})
	}
	return cases, nil
}

func hasSheet(f *excelize.File, sheet string) bool {
	for _, name := range f.GetSheetList() {
		if name == sheet {
			return true
		}
	}
	return false
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// cell returns the trimmed value at idx. GetRows omits trailing empty
// cells, so rows can be shorter than the header.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func rowBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
