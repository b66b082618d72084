package main

import "os"

// Exit codes for different failure modes, so scripts driving genforge can
// distinguish them without scraping stderr text.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitGeneral indicates a general error.
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments or usage error.
	ExitUsage = 2

	// ExitJobFailed indicates the submitted job reached status FAILED.
	ExitJobFailed = 3

	// ExitCancelled indicates the command was interrupted by a signal.
	ExitCancelled = 130
)

func exitWithCode(code int) {
	os.Exit(code)
}
