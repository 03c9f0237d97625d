// Package excel seeds the question bank from spreadsheets.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/scry/pkg/models"
)

// QuestionWriter is the part of the question repository the importer needs
type QuestionWriter interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Question, error)
	Create(ctx context.Context, q *models.Question) error
	Update(ctx context.Context, userID, id int64, patch models.QuestionPatch) (bool, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	UserID            int64  // Owner of the imported questions
	PromptColumn      string // Column with the question text
	AnswerColumn      string // Column with the correct answer
	OptionsColumn     string // Column with answer options separated by "|"
	TopicColumn       string // Column with the topic
	ExplanationColumn string // Column with the explanation
	ConceptColumn     string // Column with the concept id
	PhrasingColumn    string // Column with the phrasing id
	SheetName         string // Name of the sheet to import
	StartRow          int    // The row to start importing from (1-based index)
	DefaultTopic      string // Topic for rows without one
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		PromptColumn:      "A",
		AnswerColumn:      "B",
		OptionsColumn:     "C",
		TopicColumn:       "D",
		ExplanationColumn: "E",
		ConceptColumn:     "F",
		PhrasingColumn:    "G",
		SheetName:         "Sheet1",
		StartRow:          2, // By default, start from the second row (skip header)
		DefaultTopic:      "General",
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

type rowData struct {
	prompt      string
	answer      string
	options     string
	topic       string
	explanation string
	concept     string
	phrasing    string
}

// Importer writes spreadsheet rows as questions
type Importer struct {
	questions QuestionWriter
}

func NewImporter(questions QuestionWriter) *Importer {
	return &Importer{questions: questions}
}

// Import reads an .xlsx or .csv file. Rows matching an existing question
// (same prompt and topic) update it instead of creating a duplicate.
func (im *Importer) Import(ctx context.Context, config ImportConfig) (*ImportResult, error) {
	if config.UserID == 0 {
		return nil, fmt.Errorf("import needs an owner user id")
	}

	existing, err := im.questions.ListByUser(ctx, config.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing questions: %w", err)
	}
	index := make(map[string]models.Question, len(existing))
	for _, q := range existing {
		index[dedupKey(q.Prompt, q.Topic)] = q
	}

	run := &importRun{im: im, ctx: ctx, config: config, index: index, result: &ImportResult{Errors: make([]string, 0)}}

	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		err = run.fromCSV()
	} else {
		err = run.fromExcel()
	}
	if err != nil {
		return nil, err
	}
	return run.result, nil
}

type importRun struct {
	im     *Importer
	ctx    context.Context
	config ImportConfig
	index  map[string]models.Question
	result *ImportResult
}

func (r *importRun) fromExcel() error {
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("failed to get rows: %w", err)
	}

	for i, row := range rows {
		if i < r.config.StartRow-1 {
			continue
		}
		data := rowData{
			prompt:      cell(row, r.config.PromptColumn),
			answer:      cell(row, r.config.AnswerColumn),
			options:     cell(row, r.config.OptionsColumn),
			topic:       cell(row, r.config.TopicColumn),
			explanation: cell(row, r.config.ExplanationColumn),
			concept:     cell(row, r.config.ConceptColumn),
			phrasing:    cell(row, r.config.PhrasingColumn),
		}
		if isBlank(row) {
			r.result.Skipped++
			continue
		}
		r.process(data, i+1)
	}
	return nil
}

// fromCSV reads prompt,answer,options[,explanation] rows. A row with only its
// first cell filled starts a new topic.
func (r *importRun) fromCSV() error {
	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rowNum := 0
	currentTopic := r.config.DefaultTopic
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading CSV: %w", err)
		}
		rowNum++
		if rowNum < r.config.StartRow {
			continue
		}
		if isBlank(row) {
			r.result.Skipped++
			continue
		}

		// Строка-заголовок темы: "Geography,,"
		if strings.TrimSpace(row[0]) != "" && isBlank(row[1:]) {
			currentTopic = strings.Trim(strings.TrimSpace(row[0]), "\"")
			continue
		}

		data := rowData{topic: currentTopic}
		fields := []*string{&data.prompt, &data.answer, &data.options, &data.explanation}
		for i, dst := range fields {
			if i < len(row) {
				*dst = strings.TrimSpace(row[i])
			}
		}
		r.process(data, rowNum)
	}
	return nil
}

func (r *importRun) process(data rowData, rowNum int) {
	r.result.TotalProcessed++
	if err := r.save(data); err != nil {
		r.result.Errors = append(r.result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
	}
}

func (r *importRun) save(data rowData) error {
	prompt := strings.TrimSpace(data.prompt)
	answer := strings.TrimSpace(data.answer)
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}
	if answer == "" {
		return fmt.Errorf("correct answer cannot be empty")
	}

	topic := strings.TrimSpace(data.topic)
	if topic == "" {
		topic = r.config.DefaultTopic
	}
	options := splitOptions(data.options)
	if len(options) > 0 && !containsFold(options, answer) {
		options = append(options, answer)
	}
	explanation := strings.TrimSpace(data.explanation)

	key := dedupKey(prompt, topic)
	if existing, ok := r.index[key]; ok {
		patch := models.QuestionPatch{
			CorrectAnswer: &answer,
			Explanation:   &explanation,
			Options:       options,
		}
		if _, err := r.im.questions.Update(r.ctx, r.config.UserID, existing.ID, patch); err != nil {
			return fmt.Errorf("failed to update question: %w", err)
		}
		r.index[key] = patch.ApplyTo(existing)
		r.result.Updated++
		return nil
	}

	q := &models.Question{
		UserID:        r.config.UserID,
		ConceptID:     strings.TrimSpace(data.concept),
		PhrasingID:    strings.TrimSpace(data.phrasing),
		Topic:         topic,
		Prompt:        prompt,
		Options:       options,
		CorrectAnswer: answer,
		Explanation:   explanation,
	}
	if err := r.im.questions.Create(r.ctx, q); err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	r.index[key] = *q
	r.result.Created++
	return nil
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func dedupKey(prompt, topic string) string {
	return strings.ToLower(strings.TrimSpace(topic)) + "\x00" + strings.ToLower(strings.TrimSpace(prompt))
}

// splitOptions accepts "a|b|c" or "a;b;c"
func splitOptions(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	sep := "|"
	if !strings.Contains(s, sep) && strings.Contains(s, ";") {
		sep = ";"
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
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
