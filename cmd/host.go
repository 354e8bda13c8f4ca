package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/roomid"
	"github.com/BioHazard786/SyncPlayer/internal/session"
	"github.com/BioHazard786/SyncPlayer/internal/signaling"
	"github.com/BioHazard786/SyncPlayer/internal/ui"
	"github.com/spf13/cobra"
)

var hostCmd = &cobra.Command{
	Use:     "host [room-id]",
	Aliases: []string{"h"},
	Short:   "Open a room and wait for a peer",
	Long: `Open a room on the signaling server and wait for a peer to join.

Without a room id a random one is generated. Share the printed link or id
with the other side.

Examples:
  syncplayer host
  syncplayer host --file movie.mkv
  syncplayer host movie-night --bridge 127.0.0.1:7070 --file movie.mkv`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := ""
		if len(args) == 1 {
			ref = args[0]
		}
		return hostRoom(cmd.Context(), ref)
	},
}

func hostRoom(ctx context.Context, ref string) error {
	cfg, err := loadPeerConfig()
	if err != nil {
		return err
	}
	ctx, stop := peerContext(ctx)
	defer stop()

	client := signaling.NewClient(cfg.ServerURL, nil)

	sp := ui.NewConnectionSpinner("Opening room...")
	sp.Start()
	roomID, err := openRoom(ctx, client, ref)
	sp.Stop()
	if err != nil {
		return err
	}

	run := &peerRun{
		cfg:    cfg,
		client: client,
		role:   session.Host,
		roomID: roomID,
		invite: &ui.RoomInfo{RoomID: roomID, RoomLink: cfg.GetRoomLink(roomID)},
		log:    slog.Default(),
	}
	return run.run(ctx)
}

// openRoom returns a room id the host can use. A room id given on the
// command line is cleared first so a stale answer cannot be picked up.
func openRoom(ctx context.Context, client *signaling.Client, ref string) (string, error) {
	if ref != "" {
		roomID, err := config.ParseRoomRef(ref)
		if err != nil {
			return "", err
		}
		if err := client.ClearRoom(ctx, roomID); err != nil {
			return "", fmt.Errorf("reset room %s: %w", roomID, err)
		}
		return roomID, nil
	}

	return roomid.Reserve(ctx, func(ctx context.Context, id string) (bool, error) {
		_, err := client.GetOffer(ctx, id)
		switch {
		case errors.Is(err, signaling.ErrNotFound):
			return false, nil
		case err != nil:
			return false, err
		default:
			return true, nil
		}
	})
}

func init() {
	rootCmd.AddCommand(hostCmd)
	addPeerFlags(hostCmd)
}
