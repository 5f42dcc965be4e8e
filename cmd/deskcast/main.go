package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "deskcast",
	Short: "Stream this desktop to a browser",
	Long: `Deskcast serves the desktop as an MJPEG stream with optional loopback audio
and touch control to any browser on the local network.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Deskcast v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is deskcast.yaml in the system config directory)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(displaysCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(certCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(secureDesktopCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
