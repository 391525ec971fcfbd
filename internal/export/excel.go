// Package export writes screening results to Excel workbooks.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/agent-studio/internal/models"
)

// Sheet names
const (
	SummarySheet    = "Summary"
	CandidatesSheet = "Ranked Candidates"
	InterviewsSheet = "Interviews"
)

// Report is everything a workbook shows
type Report struct {
	Job        models.JobRequirements
	Batch      *models.BatchResult
	Interviews []models.InterviewBooking
	// Fallback marks a batch made of placeholders
	Fallback  bool
	Generated time.Time
}

// band is a score range with its fill color
type band struct {
	label string
	min   int
	color string
}

var bands = []band{
	{label: "Excellent (90-100)", min: 90, color: "C6EFCE"},
	{label: "Good (70-89)", min: 70, color: "FFEB9C"},
	{label: "Fair (50-69)", min: 50, color: "FFC7CE"},
	{label: "Poor (<50)", min: -1 << 31, color: "FF9999"},
}

func bandIndex(score int) int {
	for i, b := range bands {
		if score >= b.min {
			return i
		}
	}
	return len(bands) - 1
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// ExportToExcel writes the report to outputPath, adding the .xlsx extension when missing
func ExportToExcel(report Report, outputPath string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	var buf bytes.Buffer
	if err := WriteBatch(&buf, report); err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}
	return outputPath, nil
}

// WriteBatch renders the report as an xlsx workbook into w
func WriteBatch(w io.Writer, report Report) error {
	if report.Generated.IsZero() {
		report.Generated = time.Now()
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	for _, name := range []string{CandidatesSheet, InterviewsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	if err := createSummarySheet(f, report); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := createRankedCandidatesSheet(f, report.Batch.SortedByScore()); err != nil {
		return fmt.Errorf("failed to create ranked candidates sheet: %w", err)
	}
	if err := createInterviewsSheet(f, report.Interviews); err != nil {
		return fmt.Errorf("failed to create interviews sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// sheetWriter collects the first error of a run of cell writes
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (s *sheetWriter) set(col, row int, value any) {
	if s.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetCellValue(s.sheet, cell, value)
}

func (s *sheetWriter) style(fromCol, toCol, row, style int) {
	if s.err != nil {
		return
	}
	from, _ := excelize.CoordinatesToCellName(fromCol, row)
	to, _ := excelize.CoordinatesToCellName(toCol, row)
	s.err = s.f.SetCellStyle(s.sheet, from, to, style)
}

func (s *sheetWriter) widths(widths ...float64) {
	for i, width := range widths {
		if s.err != nil {
			return
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		s.err = s.f.SetColWidth(s.sheet, col, col, width)
	}
}

func (s *sheetWriter) header(row int, style int, titles ...string) {
	for i, title := range titles {
		s.set(i+1, row, title)
	}
	s.style(1, len(titles), row, style)
}

func (s *sheetWriter) freezeTopRow() {
	if s.err != nil {
		return
	}
	s.err = s.f.SetPanes(s.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func tableHeaderStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder,
	})
}

// createSummarySheet creates the summary sheet with job details and statistics
func createSummarySheet(f *excelize.File, report Report) error {
	s := &sheetWriter{f: f, sheet: SummarySheet}
	s.widths(28, 60)

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	section := func(title string) {
		s.set(1, row, title)
		s.style(1, 2, row, titleStyle)
		if s.err == nil {
			s.err = f.MergeCell(SummarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row))
		}
		row++
	}
	line := func(label string, value any) {
		s.set(1, row, label)
		s.style(1, 1, row, labelStyle)
		s.set(2, row, value)
		row++
	}

	section("CV Screening Report")
	row++
	line("Role:", report.Job.Description)
	line("Required Skills:", report.Job.Skills)
	line("Minimum Experience (years):", report.Job.MinYears)
	line("Location:", report.Job.Location)
	line("Generated:", report.Generated.Format("2006-01-02 15:04:05"))
	line("Total Candidates Scored:", report.Batch.Len())
	line("Interviews Scheduled:", len(report.Interviews))
	if report.Fallback {
		line("Note:", "The agent reply could not be read. Candidates are placeholders with the default score; review the raw reply.")
	}
	row++

	candidates := report.Batch.SortedByScore()
	if len(candidates) > 0 {
		section("Statistics")
		counts := make([]int, len(bands))
		total := 0
		for _, c := range candidates {
			counts[bandIndex(c.Score)]++
			total += c.Score
		}
		for i, b := range bands {
			line(b.label+":", counts[i])
		}
		row++
		line("Average Score:", fmt.Sprintf("%.2f", float64(total)/float64(len(candidates))))
		line("Highest Score:", candidates[0].Score)
		line("Lowest Score:", candidates[len(candidates)-1].Score)
	}

	return s.err
}

// createRankedCandidatesSheet lists candidates by score with color-coding
func createRankedCandidatesSheet(f *excelize.File, candidates []models.CandidateRecord) error {
	s := &sheetWriter{f: f, sheet: CandidatesSheet}
	s.widths(8, 25, 10, 12, 35, 30, 45, 25)

	headerStyle, err := tableHeaderStyle(f)
	if err != nil {
		return err
	}
	rowStyles := make([]int, len(bands))
	for i, b := range bands {
		rowStyles[i], err = f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{b.color}, Pattern: 1},
			Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
			Border:    thinBorder,
		})
		if err != nil {
			return err
		}
	}

	headers := []string{"Rank", "Candidate", "Score", "Experience", "Skills", "Education", "Recommendation", "Source File"}
	s.header(1, headerStyle, headers...)

	for i, c := range candidates {
		row := i + 2
		s.set(1, row, i+1)
		s.set(2, row, c.Name)
		s.set(3, row, c.Score)
		if c.YearsExperience != nil {
			s.set(4, row, *c.YearsExperience)
		}
		s.set(5, row, strings.Join(c.Skills, ", "))
		s.set(6, row, c.Education)
		s.set(7, row, c.Recommendation)
		s.set(8, row, c.SourceFile)
		s.style(1, len(headers), row, rowStyles[bandIndex(c.Score)])
	}

	if len(candidates) > 0 && s.err == nil {
		s.err = f.AutoFilter(CandidatesSheet, fmt.Sprintf("A1:H%d", len(candidates)+1), []excelize.AutoFilterOptions{})
	}
	s.freezeTopRow()
	return s.err
}

// createInterviewsSheet lists bookings in the order they were made
func createInterviewsSheet(f *excelize.File, interviews []models.InterviewBooking) error {
	s := &sheetWriter{f: f, sheet: InterviewsSheet}
	s.widths(30, 15)

	headerStyle, err := tableHeaderStyle(f)
	if err != nil {
		return err
	}
	s.header(1, headerStyle, "Candidate", "Date")
	for i, b := range interviews {
		s.set(1, i+2, b.CandidateName)
		s.set(2, i+2, b.Date)
	}
	s.freezeTopRow()
	return s.err
}
