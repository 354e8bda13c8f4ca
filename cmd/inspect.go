package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/signaling"
	"github.com/BioHazard786/SyncPlayer/internal/ui"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <room-id|invite-link>",
	Short: "Show what the mailbox holds for a room",
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
		return inspectRoom(cmd.Context(), signaling.NewClient(cfg.ServerURL, nil), roomID, cmd.OutOrStdout())
	},
}

func inspectRoom(ctx context.Context, client *signaling.Client, roomID string, w io.Writer) error {
	in := ui.Inspection{RoomID: roomID}

	offer, err := client.GetOffer(ctx, roomID)
	if err != nil && !errors.Is(err, signaling.ErrNotFound) {
		return err
	}
	in.Offer = describeSDP(offer)

	answer, err := client.GetAnswer(ctx, roomID)
	if err != nil && !errors.Is(err, signaling.ErrNotFound) {
		return err
	}
	in.Answer = describeSDP(answer)

	cands, err := client.GetCandidates(ctx, roomID)
	if err != nil {
		return err
	}
	for i, raw := range cands {
		c := signaling.DescribeCandidate(raw)
		in.Candidates = append(in.Candidates, ui.CandidateRow{
			Index:    i,
			Type:     c.Type,
			Protocol: c.Protocol,
			Address:  c.Address,
			Mid:      c.Mid,
		})
	}

	// Older servers have no chat archive.
	if lines, err := client.GetChat(ctx, roomID); err == nil {
		in.ChatLines = len(lines)
	}

	ui.RenderInspection(w, in)
	return nil
}

func describeSDP(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var desc struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(raw, &desc); err != nil || desc.Type == "" {
		return fmt.Sprintf("present (%d bytes, not a session description)", len(raw))
	}
	return fmt.Sprintf("%s (%d bytes of SDP)", desc.Type, len(desc.SDP))
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&flagServer, "server", "S", "", "Signaling server URL (default $SYNCPLAYER_SERVER)")
}
