package main

import (
	"os"

	"github.com/replicate/sget/cmd"
	"github.com/replicate/sget/pkg/logging"
)

func main() {
	logging.SetupLogger()
	rootCMD := cmd.GetRootCommand()

	if err := rootCMD.Execute(); err != nil {
		os.Exit(1)
	}
}
