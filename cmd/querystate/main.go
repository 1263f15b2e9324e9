package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/querystate/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐ ┬ ┬┌─┐┬─┐┬ ┬┌─┐┌┬┐┌─┐┌┬┐┌─┐
  │─┼┐│ │├┤ ├┬┘└┬┘└─┐ │ ├─┤ │ ├┤
  └─┘└└─┘└─┘┴└─ ┴ └─┘ ┴ ┴ ┴ ┴ └─┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(errors.FromError(err, "E502"))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "querystate",
		Short: "Type-safe URL query state, synchronized from the server",
		Long: `querystate keeps typed application state in the URL query string.

Writes are queued, throttled and committed in one navigation, and every
consumer of a key sees the new value before the URL changes.

Commands:
  serve     run the WebSocket demo server
  inspect   parse a query string with typed keys`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor || os.Getenv("NO_COLOR") != "" {
				errors.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		serveCmd(),
		inspectCmd(),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
