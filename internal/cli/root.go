// Package cli wires the export and publishing pipelines to commands.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pavel4en/lms-api-app/internal/config"
	"github.com/Pavel4en/lms-api-app/internal/export"
	"github.com/Pavel4en/lms-api-app/internal/filter"
	"github.com/Pavel4en/lms-api-app/internal/httpx"
	"github.com/Pavel4en/lms-api-app/internal/lms"
	"github.com/Pavel4en/lms-api-app/internal/report"
)

var globalFlags struct {
	Config string
}

var rootCmd = &cobra.Command{
	Use:   "lmsdump",
	Short: "lmsdump — выгрузка курсов, сеансов и материалов из ЛМС",
	Long: `lmsdump pulls course, session and material data from the LMS REST API,
applies client-side filters, flattens the records and exports them to
xlsx workbooks. The feedback mode publishes survey links back into the
LMS as course sections with hyperlink materials.

Credentials come from the config file or LMS_CLIENT_ID / LMS_CLIENT_SECRET.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", "lmsdump.yaml", "path to configuration file")
}

// ExecuteContext runs the root command under ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(globalFlags.Config)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func retryPolicy(rc config.RetryConfig) httpx.Policy {
	if rc.MaxAttempts <= 1 {
		return httpx.Disabled()
	}
	pol := httpx.Default()
	pol.MaxAttempts = rc.MaxAttempts
	if rc.BaseDelay > 0 {
		pol.BaseDelay = rc.BaseDelay
	}
	if rc.MaxDelay > 0 {
		pol.MaxDelay = rc.MaxDelay
	}
	return pol
}

func newClient(cfg config.Config, rep report.Reporter) *lms.Client {
	return lms.New(cfg.API.BaseURL, cfg.API.TokenURL, cfg.API.ClientID, cfg.API.ClientSecret, lms.Options{
		Retry:            retryPolicy(cfg.Retry),
		Reporter:         rep,
		PageSize:         cfg.API.PageSize,
		CoursePageDelay:  cfg.API.CoursePageDelay,
		SessionPageDelay: cfg.API.SessionPageDelay,
		Timeout:          cfg.API.Timeout,
	})
}

// exportFlags is the filter/output surface shared by the sessions and
// materials commands.
type exportFlags struct {
	out     string
	start   string
	end     string
	types   []string
	idsFile string
	sftp    bool
}

func (f *exportFlags) register(cmd *cobra.Command, defaultPrefix string) {
	cmd.Flags().StringVar(&f.out, "out", "", fmt.Sprintf("output workbook path (default %q)", defaultPrefix+"_YYYY-MM-DD.xlsx"))
	cmd.Flags().StringVar(&f.start, "start", "", "only courses created on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "only courses created on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&f.types, "types", nil, "course type names to keep (case-insensitive, OR)")
	cmd.Flags().StringVar(&f.idsFile, "ids-file", "", "xlsx file with a course_id column used as an allowlist")
	cmd.Flags().BoolVar(&f.sftp, "sftp", false, "upload the workbook to the configured SFTP drop")
}

func (f *exportFlags) outPath(defaultPrefix string) string {
	if f.out != "" {
		return f.out
	}
	return export.DatedFilename(defaultPrefix)
}

// filterOptions builds the filter pass from the flags. The end date is
// widened to the end of its day so the boundary day stays inclusive.
func (f *exportFlags) filterOptions(rep report.Reporter) (filter.Options, error) {
	var opts filter.Options

	if f.start != "" {
		t, err := time.Parse("2006-01-02", f.start)
		if err != nil {
			return opts, fmt.Errorf("invalid --start %q: %w", f.start, err)
		}
		opts.StartDate = t
	}
	if f.end != "" {
		t, err := time.Parse("2006-01-02", f.end)
		if err != nil {
			return opts, fmt.Errorf("invalid --end %q: %w", f.end, err)
		}
		opts.EndDate = t.Add(24*time.Hour - time.Nanosecond)
	}
	opts.CourseTypes = f.types

	if f.idsFile != "" {
		ids, err := export.ReadCourseIDs(f.idsFile)
		if err != nil {
			report.Logf(rep, "Ошибка чтения файла с course_id: %v", err)
			return opts, err
		}
		if len(ids) > 0 {
			report.Logf(rep, "Фильтр по course_id: найдено %d записей.", len(ids))
		} else {
			report.Logf(rep, "Файл с course_id не содержит данных.")
		}
		opts.CourseIDs = ids
	}
	return opts, nil
}
