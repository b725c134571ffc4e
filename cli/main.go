package main

import (
	"os"

	"github.com/trebuchet-org/treb-relay/internal/cli"
	"github.com/trebuchet-org/treb-relay/internal/config"
)

// Set via -ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	config.SetBuildFlags(version, commit, date)
	os.Exit(cli.Execute())
}
