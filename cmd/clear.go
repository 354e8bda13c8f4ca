package cmd

import (
	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/signaling"
	"github.com/BioHazard786/SyncPlayer/internal/ui"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear <room-id|invite-link>",
	Short: "Delete everything the mailbox holds for a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := config.ParseRoomRef(args[0])
		if err != nil {
			return err
		}
		cfg, err := config.Load(config.Options{ServerURL: flagServer})
		if err != nil {
			return err
		}
		if err := signaling.NewClient(cfg.ServerURL, nil).ClearRoom(cmd.Context(), roomID); err != nil {
			return err
		}
		ui.PrintSuccessf("Room %s cleared", roomID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().StringVarP(&flagServer, "server", "S", "", "Signaling server URL (default $SYNCPLAYER_SERVER)")
}
