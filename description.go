package negotiator

import (
	"fmt"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// Description is a local or remote session description together with its
// lazily materialized structured form. A Description is immutable once
// produced; every rewrite yields a new instance.
type Description struct {
	Type webrtc.SDPType `json:"type"`
	SDP  string         `json:"sdp"`

	// This will never be initialized by callers, internal use only
	parsed *sdp.SessionDescription
}

// Unmarshal is a helper to deserialize the sdp.
func (d *Description) Unmarshal() (*sdp.SessionDescription, error) {
	if d.parsed != nil {
		return d.parsed, nil
	}
	parsed := &sdp.SessionDescription{}
	if err := parsed.UnmarshalString(d.SDP); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDescription, err)
	}
	d.parsed = parsed
	return parsed, nil
}

// WebRTC converts to the transport-level representation.
func (d Description) WebRTC() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: d.Type, SDP: d.SDP}
}

// FromWebRTC wraps a transport-level description.
func FromWebRTC(sd webrtc.SessionDescription) Description {
	return Description{Type: sd.Type, SDP: sd.SDP}
}

func newDescription(t webrtc.SDPType, parsed *sdp.SessionDescription) (Description, error) {
	raw, err := parsed.Marshal()
	if err != nil {
		return Description{}, fmt.Errorf("%w: %w", ErrMalformedDescription, err)
	}
	return Description{Type: t, SDP: string(raw), parsed: parsed}, nil
}

// cloneSession deep-copies a parsed description by round-tripping it
// through its wire form, preserving attribute order for untouched lines.
func cloneSession(s *sdp.SessionDescription) (*sdp.SessionDescription, error) {
	raw, err := s.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDescription, err)
	}
	out := &sdp.SessionDescription{}
	if err := out.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDescription, err)
	}
	return out, nil
}
