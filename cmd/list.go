package cmd

import (
	"io"

	"github.com/biograph/bdk/ingest"
	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
)

// ListMain is wrapped by NewListCommand and only exported for testing purposes.
var ListMain *ingest.ListMain

// NewListCommand returns a new cobra command wrapping ListMain.
func NewListCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	ListMain = ingest.NewListMain()
	listCommand := &cobra.Command{
		Use:   "list",
		Short: "list registered resources and their datasets",
		Long:  `Print every registered resource, its datasets, formats and source URLs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ListMain.Run()
		},
	}
	flags := listCommand.Flags()
	if err := commandeer.Flags(flags, ListMain); err != nil {
		panic(err)
	}
	return listCommand
}

func init() {
	subcommandFns["list"] = NewListCommand
}
