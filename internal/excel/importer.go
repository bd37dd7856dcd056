package excel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/nihongoquest/pkg/logger"
	"github.com/example/nihongoquest/pkg/models"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported deck format")

// Introducer starts tracking new SRS items
type Introducer interface {
	Introduce(script models.Script, itemIDs ...string) int
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath     string // Path to the Excel or CSV file
	ItemColumn   string // Column with the character or kanji
	ScriptColumn string // Column with the script or monument category
	SheetName    string // Name of the sheet to import, first sheet when empty
	StartRow     int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		ItemColumn:   "A",
		ScriptColumn: "B",
		StartRow:     2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Introduced     int
	Skipped        int
	Errors         []string
}

// ImportDeck reads a deck from an Excel or CSV file and introduces every
// item as a new SRS item. Items already tracked are skipped.
//
// A row with only the first cell filled is a section header; its text
// becomes the script of the rows below it that leave the script empty.
func ImportDeck(config ImportConfig, into Introducer) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(config.FilePath)) {
	case ".csv":
		rows, err = readCSV(config.FilePath)
	case ".xlsx", ".xlsm":
		rows, err = readExcel(config.FilePath, config.SheetName)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(config.FilePath))
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	itemIdx := columnToIndex(config.ItemColumn)
	scriptIdx := columnToIndex(config.ScriptColumn)
	section := ""

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow {
			continue
		}
		item := cell(row, itemIdx)
		script := cell(row, scriptIdx)
		if item == "" && script == "" {
			continue
		}
		if script == "" && isSectionHeader(row, itemIdx) {
			section = item
			continue
		}
		if script == "" {
			script = section
		}

		result.TotalProcessed++
		s, ok := models.CharacterScript(strings.ToLower(script))
		if !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: unknown script %q", rowNum, script))
			continue
		}
		if into.Introduce(s, item) == 1 {
			result.Introduced++
		} else {
			result.Skipped++
		}
	}

	logger.For("excel").Infof("Imported deck %s: %d introduced, %d skipped, %d errors",
		filepath.Base(config.FilePath), result.Introduced, result.Skipped, len(result.Errors))
	return result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isSectionHeader(row []string, itemIdx int) bool {
	for i, v := range row {
		if i != itemIdx && strings.TrimSpace(v) != "" {
			return false
		}
	}
	_, ok := models.CharacterScript(strings.ToLower(cell(row, itemIdx)))
	return ok
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.Trim(strings.TrimSpace(row[idx]), "\"")
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
