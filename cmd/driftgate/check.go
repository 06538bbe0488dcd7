package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftgate/driftgate/internal/engine"
	"github.com/driftgate/driftgate/internal/fetch"
	"github.com/driftgate/driftgate/internal/github"
	"github.com/driftgate/driftgate/internal/logging"
	"github.com/driftgate/driftgate/internal/models"
	"github.com/driftgate/driftgate/internal/output"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Analyze a change set for cross-layer drift and gate the merge",
	Long: `Analyzes the change set between two revisions. Sources:

  --repo owner/name --pr N          a GitHub pull request
  --repo owner/name --base X --head Y   a GitHub ref comparison
  --base-dir A --head-dir B         two local checkouts

Exits non-zero when high-severity drift blocks the merge.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("repo", "", "GitHub repository as owner/name")
	checkCmd.Flags().Int("pr", 0, "pull request number")
	checkCmd.Flags().String("base", "", "base ref for comparison")
	checkCmd.Flags().String("head", "", "head ref for comparison")
	checkCmd.Flags().String("base-dir", "", "local directory with the base revision")
	checkCmd.Flags().String("head-dir", "", "local directory with the head revision")
	checkCmd.Flags().String("changeset", "", "JSON change-set descriptor (with --base-dir/--head-dir)")
	checkCmd.Flags().Bool("quiet", false, "one-line summary (for pre-commit hooks)")
	checkCmd.Flags().Bool("json", false, "machine-readable JSON report")
	checkCmd.Flags().String("override", "", "override reason to unblock a gated merge")

	checkCmd.MarkFlagsMutuallyExclusive("quiet", "json")
	checkCmd.MarkFlagsMutuallyExclusive("pr", "base")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if reason, _ := cmd.Flags().GetString("override"); reason != "" {
		cfg.OverrideReason = reason
	}

	fetcher, cs, err := resolveSource(ctx, cmd)
	if err != nil {
		return err
	}

	slogger := logging.Default().Slog()
	report, err := engine.New(cfg, fetcher, slogger).Run(ctx, cs)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	verbosity := output.GetDefaultVerbosity()
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		verbosity = output.VerbosityQuiet
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		verbosity = output.VerbosityJSON
	}
	if err := output.NewFormatter(verbosity).Format(report, os.Stdout); err != nil {
		return err
	}

	if report.Summary.Blocked {
		os.Exit(1)
	}
	return nil
}

// resolveSource builds the content fetcher and change set from the flags
func resolveSource(ctx context.Context, cmd *cobra.Command) (models.ContentFetcher, *models.ChangeSet, error) {
	repo, _ := cmd.Flags().GetString("repo")
	baseDir, _ := cmd.Flags().GetString("base-dir")
	headDir, _ := cmd.Flags().GetString("head-dir")

	switch {
	case repo != "":
		owner, name, err := github.ParseRepo(repo)
		if err != nil {
			return nil, nil, err
		}
		client := github.NewClient(cfg.GitHub.Token, owner, name, cfg.GitHub.RateLimit)

		if pr, _ := cmd.Flags().GetInt("pr"); pr > 0 {
			cs, err := client.ChangeSetFromPR(ctx, pr)
			if err != nil {
				return nil, nil, fmt.Errorf("enumerate pull request: %w", err)
			}
			return client, cs, nil
		}

		base, _ := cmd.Flags().GetString("base")
		head, _ := cmd.Flags().GetString("head")
		if base == "" || head == "" {
			return nil, nil, fmt.Errorf("--repo requires either --pr or both --base and --head")
		}
		cs, err := client.ChangeSetFromCompare(ctx, base, head)
		if err != nil {
			return nil, nil, fmt.Errorf("enumerate comparison: %w", err)
		}
		return client, cs, nil

	case baseDir != "" && headDir != "":
		local := fetch.NewLocal(baseDir, headDir, "base")
		if path, _ := cmd.Flags().GetString("changeset"); path != "" {
			cs, err := fetch.ChangeSetFromJSON(path)
			if err != nil {
				return nil, nil, err
			}
			return local, cs, nil
		}
		cs, err := local.ChangeSet()
		if err != nil {
			return nil, nil, fmt.Errorf("enumerate local change set: %w", err)
		}
		return local, cs, nil
	}
	return nil, nil, fmt.Errorf("specify a source: --repo, or --base-dir with --head-dir")
}
