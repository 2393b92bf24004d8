package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Pavel4en/lms-api-app/internal/export"
	"github.com/Pavel4en/lms-api-app/internal/pipeline"
	"github.com/Pavel4en/lms-api-app/internal/report"
)

var feedbackFlags struct {
	in  string
	out string
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Создание разделов 'Обратная связь' со ссылками на опрос",
	Long: `Reads an xlsx workbook with course_id and course name columns,
generates a prefilled survey link per course, creates a feedback
section with a hyperlink material in each course, and exports the
outcomes to a results workbook.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rep := report.StdLog()

		rows, err := export.ReadRows(feedbackFlags.in)
		if err != nil {
			report.Logf(rep, "Ошибка чтения файла: %v", err)
			return err
		}
		report.Logf(rep, "Файл прочитан. Найдено строк: %d", len(rows))
		if len(rows) == 0 {
			return fmt.Errorf("feedback: %s contains no data rows", feedbackFlags.in)
		}

		p := &pipeline.Feedback{
			Client:   newClient(cfg, rep),
			Reporter: rep,
			Delay:    cfg.API.FeedbackDelay,
			Settings: pipeline.FeedbackSettings{
				FormURL:           cfg.Feedback.FormURL,
				CourseNameFieldID: cfg.Feedback.CourseNameFieldID,
				CourseIDFieldID:   cfg.Feedback.CourseIDFieldID,
				SectionName:       cfg.Feedback.SectionName,
				SectionIconURL:    cfg.Feedback.SectionIconURL,
				MaterialName:      cfg.Feedback.MaterialName,
				MaterialText:      cfg.Feedback.MaterialText,
			},
		}
		results, err := p.Run(cmd.Context(), rows)
		if err != nil && len(results) == 0 {
			return err
		}
		if len(results) == 0 {
			report.Logf(rep, "Нет данных для экспорта.")
			return nil
		}

		out := feedbackFlags.out
		if out == "" {
			out = export.DatedFilename("feedback_results")
		}
		if err := export.WriteFeedbackResults(out, results); err != nil {
			return err
		}
		report.Logf(rep, "Файл успешно сохранён: %s", out)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackFlags.in, "in", "", "input xlsx workbook with course rows (required)")
	feedbackCmd.Flags().StringVar(&feedbackFlags.out, "out", "", `results workbook path (default "feedback_results_YYYY-MM-DD.xlsx")`)
	_ = feedbackCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(feedbackCmd)
}
