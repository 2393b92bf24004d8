package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Pavel4en/lms-api-app/internal/report"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Список типов курсов (значения для --types)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := newClient(cfg, report.Discard())
		types, err := client.ListCourseTypes(cmd.Context())
		if err != nil {
			return err
		}
		for _, t := range types {
			fmt.Fprintln(cmd.OutOrStdout(), t.Name)
		}
		return nil
	},
}

var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Версия lmsdump",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "lmsdump", version)
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(versionCmd)
}
