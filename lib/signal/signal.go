// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Tocutoeltuco/chessagon/lib/codec"
)

// Kind identifies a Signal variant.
type Kind int

const (
	// KindSetSDP carries a peer's session description. Forwardable.
	KindSetSDP Kind = iota + 1
	// KindAddCandidate carries one ICE candidate. Forwardable. An
	// empty candidate string is the end-of-candidates marker.
	KindAddCandidate
	// KindJoinRoom names a room. Sent by a joining peer, and echoed
	// by the broker into a bound peer's own queue to confirm the
	// assignment. Never forwarded to the other peer.
	KindJoinRoom
	// KindConnectAt is the broker's instruction to attempt the WebRTC
	// handshake at an absolute instant. Broker-synthesized.
	KindConnectAt
	// KindNextPoll tells the peer when to poll again.
	// Broker-synthesized, appended to every poll response.
	KindNextPoll
)

// tagNames maps variants to their wire tags.
var tagNames = map[Kind]string{
	KindSetSDP:       "SetSDP",
	KindAddCandidate: "AddCandidate",
	KindJoinRoom:     "JoinRoom",
	KindConnectAt:    "ConnectAt",
	KindNextPoll:     "NextPoll",
}

// Candidate is one ICE candidate: the candidate string plus the
// optional media stream identification tag and m-line index from the
// browser's RTCIceCandidate. Encoded as a fixed three-element array.
type Candidate struct {
	Candidate string
	Mid       *string
	Index     *uint16
}

// Signal is one rendezvous message. Exactly one variant is active,
// named by Kind; the other fields are meaningful only for their
// variant. Construct values with the variant functions below.
type Signal struct {
	Kind      Kind
	SDP       string    // KindSetSDP
	Candidate Candidate // KindAddCandidate
	Room      string    // KindJoinRoom
	At        time.Time // KindConnectAt, KindNextPoll
}

// SetSDP builds a session description signal.
func SetSDP(sdp string) Signal { return Signal{Kind: KindSetSDP, SDP: sdp} }

// AddCandidate builds an ICE candidate signal.
func AddCandidate(candidate Candidate) Signal {
	return Signal{Kind: KindAddCandidate, Candidate: candidate}
}

// JoinRoom builds a room assignment signal.
func JoinRoom(code string) Signal { return Signal{Kind: KindJoinRoom, Room: code} }

// ConnectAt builds a handshake scheduling signal.
func ConnectAt(at time.Time) Signal { return Signal{Kind: KindConnectAt, At: at} }

// NextPoll builds a poll cadence signal.
func NextPoll(at time.Time) Signal { return Signal{Kind: KindNextPoll, At: at} }

// Sendable reports whether a peer may submit this signal for
// forwarding. JoinRoom is peer-originated but consumed by the broker;
// the scheduling variants are broker-only.
func (s Signal) Sendable() bool {
	return s.Kind == KindSetSDP || s.Kind == KindAddCandidate
}

// EndOfCandidates reports whether this is the end-of-candidates
// marker: an AddCandidate whose candidate string is empty.
func (s Signal) EndOfCandidates() bool {
	return s.Kind == KindAddCandidate && s.Candidate.Candidate == ""
}

func (s Signal) String() string {
	tag, ok := tagNames[s.Kind]
	if !ok {
		return fmt.Sprintf("Signal(%d)", int(s.Kind))
	}
	return tag
}

// --- JSON encoding ---

// MarshalJSON encodes the signal as a single-key tagged map.
func (s Signal) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindSetSDP:
		return json.Marshal(map[string]string{"SetSDP": s.SDP})
	case KindAddCandidate:
		return json.Marshal(map[string]Candidate{"AddCandidate": s.Candidate})
	case KindJoinRoom:
		return json.Marshal(map[string]string{"JoinRoom": s.Room})
	case KindConnectAt:
		return json.Marshal(map[string]int64{"ConnectAt": s.At.Unix()})
	case KindNextPoll:
		return json.Marshal(map[string]int64{"NextPoll": s.At.Unix()})
	default:
		return nil, fmt.Errorf("signal: cannot encode kind %d", int(s.Kind))
	}
}

// UnmarshalJSON decodes a single-key tagged map. Unknown tags and
// maps with more or fewer than one key are errors.
func (s *Signal) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	tag, value, err := singleTag(tagged)
	if err != nil {
		return err
	}
	return s.decodeVariant(tag, func(target any) error {
		return json.Unmarshal(value, target)
	})
}

// --- CBOR encoding ---

// MarshalCBOR encodes the signal in the same single-key tagged shape
// as JSON, so persisted queues and the HTTP surface agree on
// structure.
func (s Signal) MarshalCBOR() ([]byte, error) {
	switch s.Kind {
	case KindSetSDP:
		return codec.Marshal(map[string]string{"SetSDP": s.SDP})
	case KindAddCandidate:
		return codec.Marshal(map[string]Candidate{"AddCandidate": s.Candidate})
	case KindJoinRoom:
		return codec.Marshal(map[string]string{"JoinRoom": s.Room})
	case KindConnectAt:
		return codec.Marshal(map[string]int64{"ConnectAt": s.At.Unix()})
	case KindNextPoll:
		return codec.Marshal(map[string]int64{"NextPoll": s.At.Unix()})
	default:
		return nil, fmt.Errorf("signal: cannot encode kind %d", int(s.Kind))
	}
}

// UnmarshalCBOR decodes a single-key tagged map.
func (s *Signal) UnmarshalCBOR(data []byte) error {
	var tagged map[string]codec.RawMessage
	if err := codec.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	raw := make(map[string]json.RawMessage, len(tagged))
	for tag := range tagged {
		raw[tag] = json.RawMessage(tagged[tag])
	}
	tag, value, err := singleTag(raw)
	if err != nil {
		return err
	}
	return s.decodeVariant(tag, func(target any) error {
		return codec.Unmarshal(value, target)
	})
}

// singleTag extracts the variant tag and its raw value from a decoded
// map, enforcing the exactly-one-key shape.
func singleTag(tagged map[string]json.RawMessage) (string, []byte, error) {
	if len(tagged) != 1 {
		return "", nil, fmt.Errorf("signal: expected one variant tag, got %d", len(tagged))
	}
	for tag, value := range tagged {
		return tag, value, nil
	}
	panic("unreachable")
}

// decodeVariant fills s from a tag name and a decode function that
// unmarshals the variant's value into a target.
func (s *Signal) decodeVariant(tag string, decode func(target any) error) error {
	switch tag {
	case "SetSDP":
		var sdp string
		if err := decode(&sdp); err != nil {
			return fmt.Errorf("signal: SetSDP value: %w", err)
		}
		*s = SetSDP(sdp)
	case "AddCandidate":
		var candidate Candidate
		if err := decode(&candidate); err != nil {
			return fmt.Errorf("signal: AddCandidate value: %w", err)
		}
		*s = AddCandidate(candidate)
	case "JoinRoom":
		var code string
		if err := decode(&code); err != nil {
			return fmt.Errorf("signal: JoinRoom value: %w", err)
		}
		*s = JoinRoom(code)
	case "ConnectAt":
		var seconds int64
		if err := decode(&seconds); err != nil {
			return fmt.Errorf("signal: ConnectAt value: %w", err)
		}
		*s = ConnectAt(time.Unix(seconds, 0).UTC())
	case "NextPoll":
		var seconds int64
		if err := decode(&seconds); err != nil {
			return fmt.Errorf("signal: NextPoll value: %w", err)
		}
		*s = NextPoll(time.Unix(seconds, 0).UTC())
	default:
		return fmt.Errorf("signal: unknown variant %q", tag)
	}
	return nil
}

// --- Candidate encoding ---

// MarshalJSON encodes the candidate as [candidate, mid, index] with
// nulls for absent optionals.
func (c Candidate) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{c.Candidate, c.Mid, c.Index})
}

// UnmarshalJSON decodes the three-element array form.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var parts [3]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("candidate: %w", err)
	}
	return c.decodeParts(parts[:], func(raw []byte, target any) error {
		return json.Unmarshal(raw, target)
	})
}

// MarshalCBOR encodes the candidate as the same three-element array.
func (c Candidate) MarshalCBOR() ([]byte, error) {
	return codec.Marshal([3]any{c.Candidate, c.Mid, c.Index})
}

// UnmarshalCBOR decodes the three-element array form.
func (c *Candidate) UnmarshalCBOR(data []byte) error {
	var parts [3]codec.RawMessage
	if err := codec.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("candidate: %w", err)
	}
	raw := make([][]byte, len(parts))
	for i := range parts {
		raw[i] = parts[i]
	}
	return c.decodeParts3(raw, func(raw []byte, target any) error {
		return codec.Unmarshal(raw, target)
	})
}

func (c *Candidate) decodeParts(parts []json.RawMessage, decode func([]byte, any) error) error {
	raw := make([][]byte, len(parts))
	for i := range parts {
		raw[i] = parts[i]
	}
	return c.decodeParts3(raw, decode)
}

func (c *Candidate) decodeParts3(parts [][]byte, decode func([]byte, any) error) error {
	var candidate string
	if err := decode(parts[0], &candidate); err != nil {
		return fmt.Errorf("candidate string: %w", err)
	}
	var mid *string
	if err := decode(parts[1], &mid); err != nil {
		return fmt.Errorf("candidate mid: %w", err)
	}
	var index *uint16
	if err := decode(parts[2], &index); err != nil {
		return fmt.Errorf("candidate m-line index: %w", err)
	}
	*c = Candidate{Candidate: candidate, Mid: mid, Index: index}
	return nil
}
