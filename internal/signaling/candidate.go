package signaling

import (
	"encoding/json"
	"net"
	"strings"
)

// CandidateInfo is the readable part of a posted ICE candidate.
type CandidateInfo struct {
	Type     string
	Protocol string
	Address  string
	Mid      string
}

// DescribeCandidate pulls type, protocol and address out of a candidate
// payload of the form {"candidate":"candidate:...","sdpMid":...}. Fields it
// cannot find are left empty.
func DescribeCandidate(raw json.RawMessage) CandidateInfo {
	var init struct {
		Candidate string  `json:"candidate"`
		SDPMid    *string `json:"sdpMid"`
	}
	if err := json.Unmarshal(raw, &init); err != nil {
		return CandidateInfo{}
	}

	var info CandidateInfo
	if init.SDPMid != nil {
		info.Mid = *init.SDPMid
	}

	// foundation component protocol priority address port "typ" type ...
	fields := strings.Fields(strings.TrimPrefix(init.Candidate, "a="))
	if len(fields) >= 6 {
		info.Protocol = strings.ToLower(fields[2])
		info.Address = net.JoinHostPort(fields[4], fields[5])
	}
	for i := 6; i+1 < len(fields); i++ {
		if fields[i] == "typ" {
			info.Type = fields[i+1]
			break
		}
	}
	return info
}
