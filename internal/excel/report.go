package excel

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/nihongoquest/internal/progression"
	"github.com/example/nihongoquest/pkg/models"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "Summary"
	itemsSheet   = "Items"
)

var itemsHeader = []interface{}{
	"Script", "Item", "Stage", "Streak", "Correct", "Attempts", "Accuracy", "Next Review",
}

// ExportProgress writes a workbook with a summary sheet and one row per
// tracked SRS item
func ExportProgress(path string, rec *models.SaveRecord, stats progression.FullStats) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeSummary(f, rec, stats, bold); err != nil {
		return err
	}
	if err := writeItems(f, rec, bold); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, rec *models.SaveRecord, stats progression.FullStats, bold int) error {
	lastPlayed := ""
	if rec.LastPlayed != nil {
		lastPlayed = *rec.LastPlayed
	}
	rows := [][]interface{}{
		{"Player", rec.PlayerName},
		{"Slot", rec.Slot},
		{"Difficulty", string(rec.Difficulty)},
		{"Level", stats.LevelInfo.Level},
		{"Total XP", stats.LevelInfo.TotalXP},
		{"Level Progress %", stats.LevelInfo.ProgressPct},
		{"Play Time (h)", rec.TotalPlayTime / 3600},
		{"Last Played", lastPlayed},
		{"Lessons", stats.LessonsCompleted},
		{"Minigames", stats.MinigamesCompleted},
		{"Vocabulary", stats.VocabularyCount},
		{"Grammar", stats.GrammarCount},
		{},
		{"Monument", "Completion %"},
	}
	headerRow := len(rows)
	for _, m := range stats.MonumentProgress {
		rows = append(rows, []interface{}{m.Name, m.Completion})
	}

	for i := range rows {
		if len(rows[i]) == 0 {
			continue
		}
		if err := setRow(f, summarySheet, i+1, rows[i]); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	if err := f.SetCellStyle(summarySheet, fmt.Sprintf("B%d", headerRow), fmt.Sprintf("B%d", headerRow), bold); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	return f.SetColWidth(summarySheet, "A", "A", 28)
}

func writeItems(f *excelize.File, rec *models.SaveRecord, bold int) error {
	if err := setRow(f, itemsSheet, 1, itemsHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(itemsSheet, "A1", "H1", bold); err != nil {
		return fmt.Errorf("failed to style items: %w", err)
	}

	row := 2
	for _, script := range models.Scripts {
		items := rec.MasteredCharacters[script]
		ids := make([]string, 0, len(items))
		for id := range items {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			item := items[id]
			next := ""
			if item.NextReview > 0 {
				next = unixTime(item.NextReview).Format(time.RFC3339)
			}
			values := []interface{}{
				string(script), id, item.Stage.String(), item.ConsecutiveCorrect,
				item.TotalCorrect, item.TotalAttempts, item.Accuracy(), next,
			}
			if err := setRow(f, itemsSheet, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func unixTime(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second))).UTC()
}
