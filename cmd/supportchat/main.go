package main

import (
	"github.com/neilberkman/supportchat/internal/interface/cli"
)

// Set with -ldflags "-X main.Version=..." at release time
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	cli.SetVersion(Version, Commit, Date)
	cli.Execute()
}
