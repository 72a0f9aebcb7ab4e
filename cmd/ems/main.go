// Command ems runs the concurrent queue and transaction workload.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/ems/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands report their own failures; flag and argument errors
		// from cobra are silenced and surface here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
