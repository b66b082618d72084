package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/genforge-dev/genforge/internal/logstream"
)

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs <jobId>",
	Short: "Print a job's log stream",
	Long: `Logs prints every entry the LogStream recorded for jobId. With --follow
it then subscribes and prints new entries as they arrive until interrupted.
Heartbeat entries are filtered out, matching spec.md §6's guidance that a
logs consumer distinguishes "still working" from "stream died" without
being shown the keep-alive noise itself.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		for _, e := range logs.List(jobID) {
			printLogEntry(e)
		}
		if !logsFollow {
			return
		}
		ch, cancel := logs.Subscribe(jobID)
		defer cancel()
		for {
			select {
			case <-globalCtx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				printLogEntry(e)
			}
		}
	},
}

func init() {
	logsCmd.Flags().BoolVar(&logsFollow, "follow", false, "keep streaming new entries until interrupted")
}

func printLogEntry(e logstream.Entry) {
	if e.Heartbeat {
		return
	}
	fmt.Printf("%s [%s] %s: %s\n", e.Timestamp.Format("15:04:05"), e.Role, e.Level, e.Message)
}
