package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BioHazard786/SyncPlayer/internal/chat"
	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/control"
	"github.com/BioHazard786/SyncPlayer/internal/files"
	"github.com/BioHazard786/SyncPlayer/internal/media"
	"github.com/BioHazard786/SyncPlayer/internal/session"
	"github.com/BioHazard786/SyncPlayer/internal/signaling"
	"github.com/BioHazard786/SyncPlayer/internal/ui"
	"github.com/BioHazard786/SyncPlayer/internal/utils"
	"github.com/spf13/cobra"
)

// Flags shared by host and join.
var (
	flagServer        string
	flagSTUN          string
	flagTURN          string
	flagTURNUser      string
	flagTURNPass      string
	flagRelay         bool
	flagName          string
	flagFile          string
	flagBridge        string
	flagArchiveChat   bool
	flagTimeout       time.Duration
	flagAnswerPoll    time.Duration
	flagCandidatePoll time.Duration
)

func addPeerFlags(c *cobra.Command) {
	c.Flags().StringVarP(&flagServer, "server", "S", "", "Signaling server URL (default $SYNCPLAYER_SERVER)")
	c.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	c.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	c.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	c.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	c.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
	c.Flags().StringVarP(&flagName, "name", "n", "", "Display name in chat (default $SYNCPLAYER_NAME or hostname)")
	c.Flags().StringVarP(&flagFile, "file", "f", "", "Media file to announce to the peer")
	c.Flags().StringVarP(&flagBridge, "bridge", "b", "", "Serve a browser player on this address, e.g. 127.0.0.1:7070")
	c.Flags().BoolVar(&flagArchiveChat, "archive-chat", true, "Store sent chat lines on the signaling server")
	c.Flags().DurationVar(&flagTimeout, "timeout", 0, "Give up if not connected in time (0 waits forever)")
	c.Flags().DurationVar(&flagAnswerPoll, "answer-poll", 0, "Offer/answer poll interval (default 1s)")
	c.Flags().DurationVar(&flagCandidatePoll, "candidate-poll", 0, "Candidate poll interval (default 2s)")
}

func loadPeerConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		ServerURL:             flagServer,
		STUNServer:            flagSTUN,
		TURNServer:            flagTURN,
		TURNUser:              flagTURNUser,
		TURNPass:              flagTURNPass,
		Name:                  flagName,
		AnswerPollInterval:    flagAnswerPoll,
		CandidatePollInterval: flagCandidatePoll,
		NegotiationTimeout:    flagTimeout,
		ForceRelay:            flagRelay,
		BridgeAddr:            flagBridge,
		ArchiveChat:           flagArchiveChat,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !cfg.ForceRelay && cfg.GetTURNServers() != nil && utils.ShouldForceRelay() {
		slog.Info("VPN or CGNAT detected, preferring relay")
	}
	return cfg, nil
}

func peerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// peerRun is everything one side of a room needs while it runs.
type peerRun struct {
	cfg    *config.Config
	client *signaling.Client
	role   session.Role
	roomID string
	invite *ui.RoomInfo
	log    *slog.Logger
}

func (p *peerRun) run(ctx context.Context) error {
	var local *files.Info
	if flagFile != "" {
		info, err := files.ValidateMedia(flagFile)
		if err != nil {
			return err
		}
		if !info.Playable() {
			ui.PrintWarning(fmt.Sprintf("%s does not look like audio or video (%s)", info.Name, info.Type))
		}
		local = &info
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	surface, err := p.surface(ctx, local)
	if err != nil {
		return err
	}

	var (
		sess  *session.Session
		ctl   *control.Sync
		chatT *chat.Transport
		tui   *ui.SessionUI
	)

	sess, err = session.New(p.cfg, p.role, p.roomID, p.client, session.Hooks{
		OnStateChange: func(st session.State) {
			switch st {
			case session.Negotiating:
				tui.SetState("waiting for peer")
			case session.Connected:
				tui.SetState("connected")
				if local != nil {
					if err := ctl.AnnounceFile(local.Name); err != nil {
						p.log.Warn("announcing file failed", "error", err)
					}
				}
			case session.Failed:
				reason := "connection failed"
				if err := sess.Err(); err != nil {
					reason = "connection failed: " + err.Error()
				}
				tui.Close(reason)
			case session.Closed:
				tui.Close("session closed")
			}
		},
		OnMessage: func(data []byte) {
			_ = ctl.Receive(data)
		},
		OnError: func(err error) {
			p.log.Warn("session error", "error", err)
		},
	}, session.WithLogger(p.log))
	if err != nil {
		return err
	}
	defer sess.Close()

	var archiver chat.Archiver
	if p.cfg.ArchiveChat {
		archiver = p.client
	}
	chatT = chat.NewTransport(p.roomID, p.cfg.DisplayName, sess, archiver, p.log)
	defer chatT.Wait()

	ctl = control.New(surface, sess, control.Hooks{
		OnAction: func(action control.Action, origin control.Origin, t float64) {
			if origin != control.Remote {
				return
			}
			var text string
			switch action {
			case control.ActionPlay:
				text = "peer pressed play"
			case control.ActionPause:
				text = "peer paused"
			case control.ActionSeek:
				text = "peer seeked to " + utils.FormatPosition(t)
			}
			tui.AddChat(ui.ChatLine{System: true, Text: text})
		},
		OnRemoteFile: func(name string) {
			tui.SetRemoteFile(name)
		},
		OnChat: func(name, text string) {
			chatT.Deliver(name, text)
		},
	}, p.log)

	tui = ui.NewSessionUI(ui.SessionOptions{
		RoomID:    p.roomID,
		Role:      p.role.String(),
		LocalFile: localName(local),
		Invite:    p.invite,
		Player:    surface,
		SendChat:  chatT.Send,
	})
	chatT.OnLine(func(l chat.Line) {
		if !l.Local {
			tui.SetPeer(l.Name)
		}
		tui.AddChat(ui.ChatLine{Name: l.Name, Text: l.Text, Local: l.Local})
	})

	if err := sess.Start(ctx); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		tui.Quit()
	}()

	if err := tui.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	cancel()
	sess.Close()

	if err := sess.Err(); err != nil && !errors.Is(err, session.ErrClosed) {
		return err
	}
	return nil
}

// surface picks the browser bridge when --bridge is set, the simulated
// clock otherwise.
func (p *peerRun) surface(ctx context.Context, local *files.Info) (media.Surface, error) {
	if p.cfg.BridgeAddr == "" {
		return media.NewClock(0), nil
	}
	path := ""
	if local != nil {
		path = local.Path
	}
	bridge := media.NewBridge(path, p.log)
	errCh := make(chan error, 1)
	go func() { errCh <- bridge.ListenAndServe(ctx, p.cfg.BridgeAddr) }()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("start bridge: %w", err)
		}
	case <-time.After(100 * time.Millisecond):
	}
	ui.PrintInfof("Open http://%s in a browser to play along", p.cfg.BridgeAddr)
	return bridge, nil
}

func localName(local *files.Info) string {
	if local == nil {
		return ""
	}
	return local.Name
}
