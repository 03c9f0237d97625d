package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/scry/internal/database"
	"github.com/example/scry/internal/excel"
)

// NewImportCommand creates the command that loads questions from a spreadsheet.
func NewImportCommand(root *RootOptions) *cobra.Command {
	ic := excel.DefaultImportConfig()

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import questions from an .xlsx or .csv file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := setup(root)
			defer log.Sync()

			ic.FilePath = args[0]
			if ic.UserID == 0 {
				return fmt.Errorf("--user is required")
			}

			db, err := database.Connect(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close()

			result, err := excel.NewImporter(database.NewQuestionRepository(db)).Import(cmd.Context(), ic)
			if err != nil {
				return err
			}

			log.Info(module, "Import finished", map[string]interface{}{
				"file":      ic.FilePath,
				"user_id":   ic.UserID,
				"processed": result.TotalProcessed,
				"created":   result.Created,
				"updated":   result.Updated,
				"skipped":   result.Skipped,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d rows: %d created, %d updated, %d skipped\n",
				result.TotalProcessed, result.Created, result.Updated, result.Skipped)
			for _, e := range result.Errors {
				fmt.Fprintln(out, "  "+e)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Int64Var(&ic.UserID, "user", 0, "Telegram user id that owns the questions")
	f.StringVar(&ic.SheetName, "sheet", ic.SheetName, "sheet to read (xlsx only)")
	f.IntVar(&ic.StartRow, "start-row", ic.StartRow, "first row to import, 1-based")
	f.StringVar(&ic.DefaultTopic, "topic", ic.DefaultTopic, "topic for rows without one")
	f.StringVar(&ic.PromptColumn, "prompt-col", ic.PromptColumn, "column with the question")
	f.StringVar(&ic.AnswerColumn, "answer-col", ic.AnswerColumn, "column with the correct answer")
	f.StringVar(&ic.OptionsColumn, "options-col", ic.OptionsColumn, "column with the answer options")
	f.StringVar(&ic.TopicColumn, "topic-col", ic.TopicColumn, "column with the topic")
	f.StringVar(&ic.ExplanationColumn, "explanation-col", ic.ExplanationColumn, "column with the explanation")
	f.StringVar(&ic.ConceptColumn, "concept-col", ic.ConceptColumn, "column with the concept id")
	f.StringVar(&ic.PhrasingColumn, "phrasing-col", ic.PhrasingColumn, "column with the phrasing id")

	return cmd
}
