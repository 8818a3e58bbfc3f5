// genui serves the generative UI engine over HTTP and offers a one-shot chat
// command for trying prompts from the terminal.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "genui",
	Short: "Stream tool calls of a chat agent as live UI fragments",
	Long: `genui - streams the events of a tool-calling chat agent as an ordered
sequence of UI fragments: text deltas, loading placeholders and final
components.

Environment:
  GENUI_LISTEN, GENUI_MODEL_PROVIDER, GENUI_MODEL_NAME, GENUI_MODEL_BASE_URL,
  GENUI_MODEL_STREAM, GENUI_MAX_CONCURRENT_INVOCATIONS, GENUI_LOG_LEVEL,
  GENUI_LOG_FORMAT, OPENAI_API_KEY, ANTHROPIC_API_KEY, GITHUB_TOKEN`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a YAML config file (default: built-in defaults)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}
