package main

import (
	"os"

	"github.com/vulntor/xploit/cmd/xploit/commands"
	"github.com/vulntor/xploit/cmd/xploit/internal/format"
	"github.com/vulntor/xploit/pkg/module"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		_ = format.New(os.Stdout, os.Stderr, format.ModeTable, false, true).PrintError(err)
		os.Exit(module.ExitCode(err))
	}
}
