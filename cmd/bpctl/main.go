package main

import (
	"fmt"
	"os"

	"github.com/roach88/bprogram/internal/cli"
)

func main() {
	// Commands silence cobra's own error printing; report here with the
	// command's exit code.
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bpctl: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
