package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	// VersionMajor is the major number in bdtree's version
	VersionMajor = 0
	// VersionMinor is the minor number in bdtree's version
	VersionMinor = 1
	// VersionPatch is the patch number in bdtree's version
	VersionPatch = 0
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of bdtree",
		Long:  `All software has versions. This is bdtree's`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bdtree v%d.%d.%d\n", VersionMajor, VersionMinor, VersionPatch)
		},
	}
}
