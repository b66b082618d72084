package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <jobId>",
	Short: "Print a job's current record",
	Long: `Status prints the Job record: status, round, contract lock state, and
error count. Only meaningful against a job this process itself ran (see
`+"`genforge submit`"+`'s doc comment on persistence).`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		job, err := jobStore.Get(jobID)
		if err != nil {
			printError(err, jobID)
			exitWithCode(ExitGeneral)
		}
		printInfof("jobId:            %s\n", job.JobID)
		printInfof("status:           %s\n", job.Status)
		printInfof("round:            %d/%d\n", job.CurrentRound, job.MaxRounds)
		printInfof("contractLocked:   %v\n", job.ContractLocked)
		printInfof("sandboxProvider:  %s\n", job.SandboxProvider)
		printInfof("errorCount:       %d\n", job.ErrorCount)
		printInfof("tokensUsed:       %d\n", job.TokensUsed)
		if job.LastError != "" {
			printInfof("lastError:        %s\n", job.LastError)
		}
	},
}
