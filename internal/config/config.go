package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Default configuration values (production)
const (
	DefaultServer   = "https://syncplayer.qzz.io"
	DefaultSTUN     = "stun:stun.l.google.com:19302"
	DefaultTURN     = "" // Optional, empty by default
	DefaultTURNUser = ""
	DefaultTURNPass = ""

	DefaultAnswerPollInterval    = time.Second
	DefaultCandidatePollInterval = 2 * time.Second
)

// Config holds the configuration of a peer session
type Config struct {
	// ServerURL is the base URL of the signaling mailbox
	ServerURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Polling cadence of the signaling exchange
	AnswerPollInterval    time.Duration
	CandidatePollInterval time.Duration

	// NegotiationTimeout fails a session that is not connected in time.
	// Zero waits forever.
	NegotiationTimeout time.Duration

	ForceRelay  bool
	DisplayName string
	BridgeAddr  string
	ArchiveChat bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	Name       string

	AnswerPollInterval    time.Duration
	CandidatePollInterval time.Duration
	NegotiationTimeout    time.Duration

	ForceRelay  bool
	BridgeAddr  string
	ArchiveChat bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	serverURL := strings.TrimRight(firstNonEmpty(opts.ServerURL, os.Getenv("SYNCPLAYER_SERVER"), DefaultServer), "/")
	if !strings.Contains(serverURL, "://") {
		serverURL = "https://" + serverURL
	}
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", serverURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	name := firstNonEmpty(opts.Name, os.Getenv("SYNCPLAYER_NAME"))
	if name == "" {
		name, _ = os.Hostname()
	}
	if name == "" {
		name = "anonymous"
	}

	cfg := &Config{
		ServerURL:             serverURL,
		STUNServer:            firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN),
		TURNServer:            firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER"), DefaultTURN),
		TURNUser:              firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME"), DefaultTURNUser),
		TURNPass:              firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD"), DefaultTURNPass),
		AnswerPollInterval:    opts.AnswerPollInterval,
		CandidatePollInterval: opts.CandidatePollInterval,
		NegotiationTimeout:    opts.NegotiationTimeout,
		ForceRelay:            opts.ForceRelay,
		DisplayName:           name,
		BridgeAddr:            opts.BridgeAddr,
		ArchiveChat:           opts.ArchiveChat,
	}
	if cfg.AnswerPollInterval <= 0 {
		cfg.AnswerPollInterval = DefaultAnswerPollInterval
	}
	if cfg.CandidatePollInterval <= 0 {
		cfg.CandidatePollInterval = DefaultCandidatePollInterval
	}
	if cfg.NegotiationTimeout < 0 {
		cfg.NegotiationTimeout = 0
	}
	if cfg.ForceRelay && cfg.TURNServer == "" {
		return nil, fmt.Errorf("relay mode requires a TURN server")
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetRoomLink returns the invite link for a room ID
func (c *Config) GetRoomLink(roomID string) string {
	return fmt.Sprintf("%s/room/%s?role=join", c.ServerURL, url.PathEscape(roomID))
}

// ParseRoomRef extracts a room id from either a bare id or an invite link
// (/room/{id} or /r/{id}).
func ParseRoomRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("room id is required")
	}
	if !strings.Contains(ref, "/") {
		return ref, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid invite link %q: %w", ref, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "room" || parts[i] == "r" {
			id, err := url.PathUnescape(parts[i+1])
			if err != nil || id == "" {
				break
			}
			return id, nil
		}
	}
	return "", fmt.Errorf("no room id in invite link %q", ref)
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
