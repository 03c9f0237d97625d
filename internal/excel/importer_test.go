package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/example/scry/internal/database"
	"github.com/example/scry/pkg/models"
)

func newRepo(t *testing.T) *database.QuestionRepository {
	t.Helper()
	db, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewQuestionRepository(db)
}

func writeXLSX(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellName, &row))
	}
	path := filepath.Join(t.TempDir(), "questions.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func byPrompt(qs []models.Question) map[string]models.Question {
	out := make(map[string]models.Question, len(qs))
	for _, q := range qs {
		out[q.Prompt] = q
	}
	return out
}

func TestImport_Excel(t *testing.T) {
	repo := newRepo(t)
	path := writeXLSX(t, [][]interface{}{
		{"Prompt", "Answer", "Options", "Topic", "Explanation", "Concept", "Phrasing"},
		{"Capital of France?", "Paris", "Paris|Lyon|Nice", "Geography", "", "capital-fr", "p1"},
		{"Capital of Spain?", "Madrid", "Sevilla;Bilbao", "Geography"},
		{"", "orphan"},
		{},
	})

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.UserID = 1

	res, err := NewImporter(repo).Import(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Len(t, res.Errors, 1)

	qs, err := repo.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	got := byPrompt(qs)

	fr := got["Capital of France?"]
	assert.Equal(t, []string{"Paris", "Lyon", "Nice"}, fr.Options)
	assert.Equal(t, models.CandidateKey{ConceptID: "capital-fr", PhrasingID: "p1"}, fr.Key())

	es := got["Capital of Spain?"]
	assert.Equal(t, []string{"Sevilla", "Bilbao", "Madrid"}, es.Options)
	assert.Equal(t, "Geography", es.Topic)
}

func TestImport_ExcelUpdatesExisting(t *testing.T) {
	repo := newRepo(t)
	cfg := DefaultImportConfig()
	cfg.UserID = 1

	cfg.FilePath = writeXLSX(t, [][]interface{}{
		{"Prompt", "Answer", "Options", "Topic"},
		{"2 + 2?", "5", "", "Math"},
	})
	_, err := NewImporter(repo).Import(context.Background(), cfg)
	require.NoError(t, err)

	cfg.FilePath = writeXLSX(t, [][]interface{}{
		{"Prompt", "Answer", "Options", "Topic", "Explanation"},
		{"2 + 2?", "4", "", "math", "basic arithmetic"},
	})
	res, err := NewImporter(repo).Import(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Updated)

	qs, err := repo.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "4", qs[0].CorrectAnswer)
	assert.Equal(t, "basic arithmetic", qs[0].Explanation)
}

func TestImport_CSVTopicHeaders(t *testing.T) {
	repo := newRepo(t)
	path := filepath.Join(t.TempDir(), "questions.csv")
	content := "prompt,answer,options\n" +
		"Geography,,\n" +
		"Capital of Italy?,Rome,Rome|Milan\n" +
		"History,,\n" +
		"First man on the moon?,Armstrong,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultImportConfig()
	cfg.FilePath = path
	cfg.UserID = 1

	res, err := NewImporter(repo).Import(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Empty(t, res.Errors)

	qs, err := repo.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	got := byPrompt(qs)
	assert.Equal(t, "Geography", got["Capital of Italy?"].Topic)
	assert.Equal(t, "History", got["First man on the moon?"].Topic)
	assert.Empty(t, got["First man on the moon?"].Options)
}

func TestImport_RequiresOwner(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.FilePath = "questions.csv"

	_, err := NewImporter(newRepo(t)).Import(context.Background(), cfg)
	assert.Error(t, err)
}

func TestColumnToIndex(t *testing.T) {
	assert.Equal(t, 0, columnToIndex("A"))
	assert.Equal(t, 6, columnToIndex("g"))
	assert.Equal(t, 26, columnToIndex("AA"))
}
