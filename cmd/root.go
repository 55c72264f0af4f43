// Package cmd assembles the bdk command line tool. Subcommands register a
// constructor in subcommandFns from their init functions; NewRootCommand
// attaches every registered subcommand to the root command and layers
// environment and config-file values over the flag defaults before a
// subcommand runs.
package cmd

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version and BuildTime are stamped at link time.
var (
	Version   = "v0.0.0"
	BuildTime = "not recorded"
)

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// NewRootCommand builds the root bdk command with every registered
// subcommand attached.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "bdk",
		Short: "bdk - biological data ingestion toolkit",
		Long: "Fetch versioned source files into the bronze cache and map them\n" +
			"into normalized entities through declarative schemas.\n\n" +
			"Version: " + Version + "\nBuild Time: " + BuildTime + "\n",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return overlayConfig(cmd.Flags(), "BDK")
		},
	}
	for _, fn := range subcommandFns {
		root.AddCommand(fn(stdin, stdout, stderr))
	}
	root.SetOutput(stderr)
	return root
}

// overlayConfig resolves the final value of every flag in the set and writes
// it back through the FlagSet, so the commandeer-bound Main structs see the
// merged result. Priority, highest first: a flag passed on the command line,
// then the environment (envPrefix_NAME, dashes as underscores), then a TOML
// file named by the config flag, then the flag's default.
func overlayConfig(flags *pflag.FlagSet, envPrefix string) error {
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config file %s", path)
		}
	}

	var applyErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if applyErr != nil {
			return
		}
		if f.Changed {
			// The command line already set it. Writing the viper value back
			// would also corrupt string slices: Set appends to the existing
			// elements instead of replacing them.
			return
		}
		var merged string
		if f.Value.Type() == "stringSlice" {
			// GetString flattens a real slice from a config file to "", so
			// slices take the GetStringSlice path and re-join on commas.
			merged = strings.Join(v.GetStringSlice(f.Name), ",")
		} else {
			merged = v.GetString(f.Name)
		}
		applyErr = f.Value.Set(merged)
	})
	return applyErr
}
