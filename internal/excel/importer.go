// Package excel imports flashcards from spreadsheets.
package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/example/linguaflow/internal/apperrors"
	"github.com/example/linguaflow/internal/scoring"
	"github.com/example/linguaflow/pkg/models"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Supported formats
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath            string // Path to the Excel or CSV file
	CourseID            string // Course for rows that name none
	IDColumn            string // Column with the card id, optional
	CourseColumn        string // Column with the course id, optional
	FrontColumn         string // Column with the prompt
	BackColumn          string // Column with the answer
	PronunciationColumn string // Column with the pronunciation, optional
	ExampleColumn       string // Column with an example sentence, optional
	DifficultyColumn    string // Column with the last rating, optional
	SheetName           string // Sheet to import, first sheet when empty
	StartRow            int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		FrontColumn:         "A",
		BackColumn:          "B",
		PronunciationColumn: "C",
		ExampleColumn:       "D",
		DifficultyColumn:    "E",
		StartRow:            2, // skip header
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int      `json:"totalProcessed"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors"`
}

// FlashcardStore saves imported cards
type FlashcardStore interface {
	Save(ctx context.Context, c models.Flashcard) (bool, error)
}

// CourseLookup checks that a course exists
type CourseLookup interface {
	GetByID(ctx context.Context, id string) (models.Course, error)
}

// Importer writes spreadsheet rows as flashcards
type Importer struct {
	cards   FlashcardStore
	courses CourseLookup
}

// NewImporter creates an importer
func NewImporter(cards FlashcardStore, courses CourseLookup) *Importer {
	return &Importer{cards: cards, courses: courses}
}

// FormatOf returns the format implied by a file name
func FormatOf(name string) string {
	if strings.ToLower(filepath.Ext(name)) == ".csv" {
		return FormatCSV
	}
	return FormatXLSX
}

// ImportFile imports flashcards from config.FilePath
func (im *Importer) ImportFile(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return im.Import(ctx, file, FormatOf(config.FilePath), config)
}

// Import reads rows in the given format and saves them
func (im *Importer) Import(ctx context.Context, r io.Reader, format string, config ImportConfig) (*ImportResult, error) {
	if config.StartRow < 1 {
		config.StartRow = 1
	}
	if config.FrontColumn == "" || config.BackColumn == "" {
		return nil, apperrors.Invalid("front and back columns are required")
	}

	var (
		result *ImportResult
		err    error
	)
	switch format {
	case FormatCSV:
		result, err = im.importCSV(ctx, r, config)
	case FormatXLSX:
		result, err = im.importExcel(ctx, r, config)
	default:
		return nil, apperrors.Invalid("unsupported import format %q", format)
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"format":  format,
		"created": result.Created,
		"updated": result.Updated,
		"errors":  len(result.Errors),
	}).Info("flashcard import finished")
	return result, nil
}

func (im *Importer) importExcel(ctx context.Context, r io.Reader, config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.Invalid("failed to open Excel file: %v", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.Invalid("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.Invalid("failed to get rows of %s: %v", sheet, err)
	}

	run := newRun(im, config)
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		run.row(ctx, row, i+1, config.CourseID)
	}
	return run.result, nil
}

// importCSV also accepts section rows: a row with only its first cell set
// names the course for the rows below it
func (im *Importer) importCSV(ctx context.Context, r io.Reader, config ImportConfig) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	run := newRun(im, config)
	currentCourse := config.CourseID
	rowNum := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Invalid("error reading CSV: %v", err)
		}

		rowNum++
		if rowNum < config.StartRow {
			continue
		}

		if isSectionRow(row) {
			currentCourse = strings.Trim(strings.TrimSpace(row[0]), "\"")
			continue
		}
		run.row(ctx, row, rowNum, currentCourse)
	}
	return run.result, nil
}

func isSectionRow(row []string) bool {
	if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
		return false
	}
	for _, cell := range row[1:] {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

type importRun struct {
	im      *Importer
	config  ImportConfig
	result  *ImportResult
	courses map[string]bool
}

func newRun(im *Importer, config ImportConfig) *importRun {
	return &importRun{
		im:      im,
		config:  config,
		result:  &ImportResult{Errors: make([]string, 0)},
		courses: make(map[string]bool),
	}
}

func (r *importRun) row(ctx context.Context, row []string, rowNum int, defaultCourse string) {
	if blank(row) {
		r.result.Skipped++
		return
	}
	r.result.TotalProcessed++
	if err := r.save(ctx, row, defaultCourse); err != nil {
		r.result.Errors = append(r.result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
	}
}

func (r *importRun) save(ctx context.Context, row []string, defaultCourse string) error {
	card := models.Flashcard{
		ID:            cell(row, r.config.IDColumn),
		CourseID:      cell(row, r.config.CourseColumn),
		Front:         cell(row, r.config.FrontColumn),
		Back:          cell(row, r.config.BackColumn),
		Pronunciation: cell(row, r.config.PronunciationColumn),
		Example:       cell(row, r.config.ExampleColumn),
	}
	if card.CourseID == "" {
		card.CourseID = defaultCourse
	}
	if card.Front == "" {
		return fmt.Errorf("front cannot be empty")
	}
	if card.Back == "" {
		return fmt.Errorf("back cannot be empty")
	}
	if card.CourseID == "" {
		return fmt.Errorf("no course given")
	}
	if err := r.checkCourse(ctx, card.CourseID); err != nil {
		return err
	}

	if d := parseIntOrDefault(cell(row, r.config.DifficultyColumn), 0); scoring.ValidRating(d) {
		card.Difficulty = d
	}
	if card.ID == "" {
		card.ID = cardID(card.CourseID, card.Front)
	}

	existed, err := r.im.cards.Save(ctx, card)
	if err != nil {
		return err
	}
	if existed {
		r.result.Updated++
	} else {
		r.result.Created++
	}
	return nil
}

func (r *importRun) checkCourse(ctx context.Context, id string) error {
	if known, seen := r.courses[id]; seen {
		if !known {
			return fmt.Errorf("unknown course %s", id)
		}
		return nil
	}
	_, err := r.im.courses.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		r.courses[id] = false
		return fmt.Errorf("unknown course %s", id)
	}
	if err != nil {
		return err
	}
	r.courses[id] = true
	return nil
}

// cardID derives a stable id so importing the same sheet twice updates
// the cards instead of duplicating them
func cardID(courseID, front string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(front) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return "fc-" + courseID + "-" + strings.TrimSuffix(b.String(), "-")
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		if column[i] < 'A' || column[i] > 'Z' {
			return -1
		}
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}

// Helper function to parse integer with default value
func parseIntOrDefault(s string, defaultVal int) int {
	var val int
	if _, err := fmt.Sscanf(s, "%d", &val); err != nil {
		return defaultVal
	}
	return val
}
