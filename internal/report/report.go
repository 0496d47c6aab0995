// Package report writes quiz session reports as Excel workbooks.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-quiz/internal/analytics"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const (
	questionsSheet = "Questions"
	summarySheet   = "Summary"
)

var questionsHeader = []any{"#", "Scenario", "Selected", "Correct answer", "Status", "Explanation"}

// Exporter saves session reports under a directory.
type Exporter struct {
	dir string
	now func() time.Time
}

// NewExporter creates an Exporter writing into dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// Export writes the report of s and returns the file path.
func (e *Exporter) Export(ctx context.Context, userKey string, s *quiz.Session) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}

	// File names carry the hashed key, never the platform user ID.
	owner := analytics.UserKey(userKey)
	if owner == "" {
		owner = "anonymous"
	}
	name := fmt.Sprintf("quiz-%s-%s.xlsx", owner, e.now().UTC().Format("20060102-150405"))
	path := filepath.Join(e.dir, name)

	f, err := Build(s)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving report: %w", err)
	}
	return path, nil
}

// Write streams the report of s to w.
func Write(w io.Writer, s *quiz.Session) error {
	f, err := Build(s)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Build creates a workbook with one row per question and a summary sheet.
func Build(s *quiz.Session) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", questionsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating summary sheet: %w", err)
	}

	if err := writeQuestions(f, s.Review()); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeSummary(f, s.ID(), s.Stats()); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func writeQuestions(f *excelize.File, items []quiz.ReviewItem) error {
	if err := f.SetSheetRow(questionsSheet, "A1", &questionsHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetRowStyle(questionsSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(questionsSheet, "B", "B", 60); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}

	for _, item := range items {
		selected := ""
		if item.Selected != quiz.Unanswered {
			selected = item.Question.Options[item.Selected]
		}
		correct, explanation := "", ""
		if item.Outcome != nil {
			correct = item.Outcome.CorrectOption
			explanation = item.Outcome.Explanation
		}

		row := []any{item.Index + 1, item.Question.Scenario, selected, correct, item.State.String(), explanation}
		cell, err := excelize.CoordinatesToCellName(1, item.Index+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(questionsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing question %d: %w", item.Index+1, err)
		}
	}
	return nil
}

func writeSummary(f *excelize.File, sessionID string, st quiz.Stats) error {
	rows := [][]any{
		{"Session", sessionID},
		{"Total", st.Total},
		{"Answered", st.Answered},
		{"Submitted", st.Submitted},
		{"Correct", st.Correct},
		{"Incorrect", st.Incorrect},
		{"Remaining", st.Remaining},
		{"Score %", st.ScorePercentage},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	return nil
}
