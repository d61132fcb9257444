package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hb-chen/mkbi/internal/config"
	"github.com/hb-chen/mkbi/internal/skill"
)

// skillsCmd loads the skills directory and lists what it finds.
var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Validate and list the skills directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		registry, err := skill.NewLoader(cfg.Skills.Dir).Load()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tEXECUTOR\tEXTENSION\tANALYSIS\tTIMEOUT")
		for _, s := range registry.List() {
			analysis, timeout := "-", "-"
			if s.StaticAnalysis != "" {
				analysis = s.StaticAnalysis
			}
			if s.Timeout > 0 {
				timeout = s.Timeout.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Executor, s.FileExtension, analysis, timeout)
		}
		return w.Flush()
	},
}

func init() {
	skillsCmd.Flags().String("dir", "", "skills directory (default skills.dir)")

	rootCmd.AddCommand(skillsCmd)
}
