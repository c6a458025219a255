// ABOUTME: Root CLI command and global flags for bibletools
// ABOUTME: Wires embed, index, search, mcp and version subcommands
package commands

import (
	"github.com/spf13/cobra"
)

// Global flags shared by all subcommands.
var (
	verbose      bool
	quiet        bool
	outputFormat string
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bibletools",
		Short: "Corpus tooling for the bible-tools service",
		Long: `bibletools manages the embedding corpora behind the bible-tools service.

It embeds writing paragraphs into vectors, indexes them into a vector
store, runs one-off searches against the hosted corpora, and serves the
search tools over MCP for LLM agents.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format (auto, json)")

	cmd.AddCommand(NewEmbedCmd())
	cmd.AddCommand(NewIndexCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewMCPCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
