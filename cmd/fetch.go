package cmd

import (
	"io"
	"log"
	"time"

	"github.com/biograph/bdk/ingest"
	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
)

// FetchMain is wrapped by NewFetchCommand and only exported for testing purposes.
var FetchMain *ingest.FetchMain

// NewFetchCommand returns a new cobra command wrapping FetchMain.
func NewFetchCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	FetchMain = ingest.NewFetchMain()
	fetchCommand := &cobra.Command{
		Use:   "fetch",
		Short: "refresh the bronze cache for the selected datasets",
		Long: `Download each selected dataset if its remote changed and convert it into
the columnar cache. With fresh validators and no changes, no body is
downloaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := FetchMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := fetchCommand.Flags()
	if err := commandeer.Flags(flags, FetchMain); err != nil {
		panic(err)
	}
	return fetchCommand
}

func init() {
	subcommandFns["fetch"] = NewFetchCommand
}
