// awgctl compiles pulse programs into waveform catalogs and sequence tables
// for arbitrary waveform generators, and exercises them against a simulated
// instrument.
//
// Usage:
//
//	awgctl validate <programs-dir>
//	awgctl plan <programs-dir> --profile-file profiles.yaml
//	awgctl simulate <programs-dir> --profile-file profiles.yaml [--arm name] [--db captures.db]
//	awgctl captures list --db captures.db
package main

import (
	"fmt"
	"os"

	"github.com/openqlab/awgctl/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
