package cmd

import (
	"os"

	"github.com/BioHazard786/SyncPlayer/internal/ui"
	"github.com/BioHazard786/SyncPlayer/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "syncplayer",
	Short: "Watch a video together, peer to peer, in sync",
	Long: `SyncPlayer keeps two media players in step over a WebRTC data channel.

Peers meet through a small signaling mailbox (syncplayer serve). Once connected,
play, pause and seek on one side are mirrored on the other, and both sides can chat.`,
	Version: version.Version,
}

// Execute runs the command tree. It is called once by main.main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
