package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hb-chen/mkbi/internal/agent"
	"github.com/hb-chen/mkbi/internal/config"
	"github.com/hb-chen/mkbi/pkg/logger"
)

var (
	runSkill, reportDir string
	outputOnly          bool
)

// runCmd runs a single request through the pipeline and prints the result.
var runCmd = &cobra.Command{
	Use:   "run [flags] <request...>",
	Short: "Run one request through the pipeline",
	Long: `Run one request through interpret, fabricate, analyze and execute.

With --output-only the script's stdout, or the error of an aborted run, is
printed. Otherwise a Markdown report of the whole run is printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		svc, err := initService(cfg)
		if err != nil {
			return err
		}

		request := strings.Join(args, " ")
		result, err := svc.Execute(cmd.Context(), runSkill, request)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputOnly {
			fmt.Fprint(out, result.OutputOnly().Output)
		} else {
			reporter := agent.NewMarkdownReporter(reportDir, reportDir != "")
			if err := reporter.Write(out, request, result); err != nil {
				return err
			}
			if path, err := reporter.GenerateReport(request, result); err != nil {
				logger.Warnf("Failed to save report: %v", err)
			} else if path != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Report saved to %s\n", path)
			}
		}

		if result.Aborted() {
			return fmt.Errorf("run %s aborted", result.RunID)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runSkill, "skill", "s", "", "skill to use (default skills.default)")
	runCmd.Flags().BoolVarP(&outputOnly, "output-only", "o", false, "print only the script output or error")
	runCmd.Flags().Duration("timeout", 0, "execution timeout (default execution.timeout)")
	runCmd.Flags().StringVar(&reportDir, "report-dir", "", "also save the Markdown report to this directory")
	runCmd.Flags().String("dir", "", "skills directory (default skills.dir)")

	rootCmd.AddCommand(runCmd)
}
