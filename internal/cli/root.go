// Package cli implements the voxrelay command line interface.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/voxrelay/voxrelay/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		" __   _____  ___ __ ___| | __ _ _   _\n" +
		" \\ \\ / / _ \\ \\/ / '__/ _ \\ |/ _` | | | |\n" +
		"  \\ V / (_) >  <| | |  __/ | (_| | |_| |\n" +
		"   \\_/ \\___/_/\\_\\_|  \\___|_|\\__,_|\\__, |\n" +
		"                                   |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "voxrelay",
	Short: "voxrelay - Conversational voice relay",
	Long:  color.CyanString(logo) + "\nA conversational relay bridging chat platforms with completion and speech services.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sayCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
