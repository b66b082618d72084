package main

import (
	"github.com/spf13/cobra"
)

var (
	artifactsPath        string
	artifactsAllVersions bool
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts <jobId>",
	Short: "List a job's artifacts",
	Long: `Artifacts lists the latest version of every artifact a job produced.
With --path it lists one path's version chain instead (oldest first); add
--all-versions to show every intermediate repair attempt rather than just
the latest.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]

		if artifactsPath != "" {
			versions, err := artStore.ListByPath(jobID, artifactsPath)
			if err != nil {
				printError(err, jobID)
				exitWithCode(ExitGeneral)
			}
			if !artifactsAllVersions && len(versions) > 0 {
				versions = versions[len(versions)-1:]
			}
			for _, a := range versions {
				printInfof("%s v%d (by %s, round %d)\n", a.FilePath, a.Version, a.GeneratedBy, a.GenerationRound)
			}
			return
		}

		latest, err := artStore.ListLatest(jobID)
		if err != nil {
			printError(err, jobID)
			exitWithCode(ExitGeneral)
		}
		for _, a := range latest {
			status := "ok"
			if a.HasErrors {
				status = "errors"
			}
			printInfof("%s v%d (%s, by %s)\n", a.FilePath, a.Version, status, a.GeneratedBy)
		}
	},
}

func init() {
	artifactsCmd.Flags().StringVar(&artifactsPath, "path", "", "show one artifact path's version chain instead of every latest artifact")
	artifactsCmd.Flags().BoolVar(&artifactsAllVersions, "all-versions", false, "with --path, show every version instead of just the latest")
}
