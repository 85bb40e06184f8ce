package main

import (
	"fmt"
	"os"

	runstreamcmder "github.com/papercomputeco/runstream/cmd/runstream"
	"github.com/papercomputeco/runstream/pkg/cliui"
)

func main() {
	cmd := runstreamcmder.NewRunstreamCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cliui.FailMark, err)
		os.Exit(1)
	}
}
