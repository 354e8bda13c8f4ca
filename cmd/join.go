package cmd

import (
	"context"
	"log/slog"

	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/session"
	"github.com/BioHazard786/SyncPlayer/internal/signaling"
	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|invite-link>",
	Aliases: []string{"j"},
	Short:   "Join a room opened by a host",
	Long: `Join a room by id or by the invite link the host shared.

Examples:
  syncplayer join cozy-otter-nacho-comet
  syncplayer join https://syncplayer.qzz.io/room/cozy-otter-nacho-comet?role=join
  syncplayer join cozy-otter-nacho-comet --file movie.mkv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(cmd.Context(), args[0])
	},
}

func joinRoom(ctx context.Context, ref string) error {
	roomID, err := config.ParseRoomRef(ref)
	if err != nil {
		return err
	}
	cfg, err := loadPeerConfig()
	if err != nil {
		return err
	}
	ctx, stop := peerContext(ctx)
	defer stop()

	run := &peerRun{
		cfg:    cfg,
		client: signaling.NewClient(cfg.ServerURL, nil),
		role:   session.Joiner,
		roomID: roomID,
		log:    slog.Default(),
	}
	return run.run(ctx)
}

func init() {
	rootCmd.AddCommand(joinCmd)
	addPeerFlags(joinCmd)
}
