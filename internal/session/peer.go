package session

import (
	"github.com/BioHazard786/SyncPlayer/internal/config"
	"github.com/BioHazard786/SyncPlayer/internal/utils"
	"github.com/pion/webrtc/v4"
)

// ChannelLabel names the single data channel a room uses.
const ChannelLabel = "sync"

func newPeerConnection(cfg *config.Config, se *webrtc.SettingEngine) (*webrtc.PeerConnection, error) {
	var iceServers []webrtc.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || utils.ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	var api *webrtc.API
	if se != nil {
		api = webrtc.NewAPI(webrtc.WithSettingEngine(*se))
	} else {
		api = webrtc.NewAPI()
	}

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, newError("create peer connection", err)
	}
	return pc, nil
}

func createDataChannel(pc *webrtc.PeerConnection) (*webrtc.DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, newError("create data channel", err)
	}
	return dc, nil
}

func createOffer(pc *webrtc.PeerConnection) (*webrtc.SessionDescription, error) {
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, newError("create offer", err)
	}
	if err = pc.SetLocalDescription(offer); err != nil {
		return nil, newError("set local description", err)
	}
	return pc.LocalDescription(), nil
}

func createAnswer(pc *webrtc.PeerConnection) (*webrtc.SessionDescription, error) {
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, newError("create answer", err)
	}
	if err = pc.SetLocalDescription(answer); err != nil {
		return nil, newError("set local description", err)
	}
	return pc.LocalDescription(), nil
}
