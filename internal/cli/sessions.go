package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Pavel4en/lms-api-app/internal/export"
	"github.com/Pavel4en/lms-api-app/internal/pipeline"
	"github.com/Pavel4en/lms-api-app/internal/report"
	"github.com/Pavel4en/lms-api-app/internal/sftpclient"
)

var sessionsFlags exportFlags

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Выгрузка курсов, сеансов и докладчиков в xlsx",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rep := report.StdLog()

		opts, err := sessionsFlags.filterOptions(rep)
		if err != nil {
			return err
		}

		p := &pipeline.Sessions{
			Client:   newClient(cfg, rep),
			Reporter: rep,
			Pacing:   cfg.API.CoursePacing,
		}
		rows, err := p.Run(cmd.Context(), opts)
		if err != nil && len(rows) == 0 {
			return err
		}
		if len(rows) == 0 {
			report.Logf(rep, "Нет данных для экспорта.")
			return nil
		}

		out := sessionsFlags.outPath("course_sessions_speakers")
		if err := export.WriteSessionRows(out, rows); err != nil {
			return err
		}
		report.Logf(rep, "Файл успешно сохранён: %s", out)

		if sessionsFlags.sftp {
			if err := sftpclient.Upload(cmd.Context(), cfg.SFTP, out, filepath.Base(out)); err != nil {
				return err
			}
			report.Logf(rep, "Файл загружен в SFTP: %s", filepath.Base(out))
		}
		return nil
	},
}

func init() {
	sessionsFlags.register(sessionsCmd, "course_sessions_speakers")
	rootCmd.AddCommand(sessionsCmd)
}
