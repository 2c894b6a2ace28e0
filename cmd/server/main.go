package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const programName = "credentials"

func main() {
	root := &cobra.Command{
		Use:           programName,
		Short:         "Credential issuance service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCommand(), migrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
