package cmd

import (
	"io"
	"log"
	"time"

	"github.com/biograph/bdk/ingest"
	"github.com/jaffee/commandeer"
	"github.com/spf13/cobra"
)

// RunMain is wrapped by NewRunCommand and only exported for testing purposes.
var RunMain *ingest.RunMain

// NewRunCommand returns a new cobra command wrapping RunMain.
func NewRunCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	RunMain = ingest.NewRunMain()
	runCommand := &cobra.Command{
		Use:   "run",
		Short: "map the selected datasets into entities",
		Long: `Stream the selected datasets through their schemas and write the mapped
entities to stdout as JSON lines.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := RunMain.Run(); err != nil {
				return err
			}
			log.Println("Done: ", time.Since(start))
			return nil
		},
	}
	flags := runCommand.Flags()
	if err := commandeer.Flags(flags, RunMain); err != nil {
		panic(err)
	}
	return runCommand
}

func init() {
	subcommandFns["run"] = NewRunCommand
}
