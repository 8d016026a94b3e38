package cmd

import (
	"github.com/spf13/cobra"

	"github.com/replicate/sget/cmd/root"
	"github.com/replicate/sget/cmd/version"
)

func GetRootCommand() *cobra.Command {
	rootCMD := root.GetCommand()
	rootCMD.AddCommand(version.VersionCMD)
	return rootCMD
}
