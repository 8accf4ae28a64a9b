package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/corbin-r/net-pipe/internal/audit"
	"github.com/corbin-r/net-pipe/internal/model"
	"github.com/corbin-r/net-pipe/internal/scenario"
)

var (
	checkScenario string
	checkFormat   string
	checkAuditLog string
)

// errChecksFailed makes check exit non-zero after printing its report.
var errChecksFailed = fmt.Errorf("one or more scenarios failed")

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkScenario, "scenario", "", "Glob pattern for scenario YAML files (required)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	checkCmd.Flags().StringVar(&checkAuditLog, "audit-log", "", "Record scenario channel events to this audit log")
	checkCmd.MarkFlagRequired("scenario")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run channel scenarios and assert each step's outcome",
	Long: "Loads scenario YAML files matching a glob pattern, replays each\n" +
		"scripted channel session, and reports pass/fail per step.\n\n" +
		"Exit code 0 if all steps pass, 1 if any fail.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	matches, err := filepath.Glob(checkScenario)
	if err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no scenario files match pattern: %s", checkScenario)
	}

	var observers []model.Observer
	if checkAuditLog != "" {
		log, err := audit.Open(checkAuditLog)
		if err != nil {
			return err
		}
		defer log.Close()
		observers = append(observers, log)
	}

	var results []*scenario.RunResult
	for _, path := range matches {
		r, err := scenario.LoadAndRun(cmd.Context(), path, observers...)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		results = append(results, r)
	}

	out := cmd.OutOrStdout()
	switch checkFormat {
	case "json":
		js, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, js)
	default:
		fmt.Fprint(out, scenario.FormatText(results))
	}

	for _, r := range results {
		if r.Failed > 0 {
			return errChecksFailed
		}
	}
	return nil
}
