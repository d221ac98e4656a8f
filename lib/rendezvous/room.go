// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"errors"
	"time"

	"github.com/Tocutoeltuco/chessagon/lib/record"
	"github.com/Tocutoeltuco/chessagon/lib/signal"
)

// RoomCodeLength is the number of characters in a room code. Six
// characters keeps codes short enough to read to the other player
// over any side channel.
const RoomCodeLength = 6

const (
	// firstPoll is the deadline granted to a peer that just entered a
	// room, before its first real poll lands.
	firstPoll = 1 * time.Second

	// pollInterval is the cadence while a peer waits alone in a room.
	pollInterval = 10 * time.Second

	// fastPoll is the cadence once both slots are taken and signals
	// are flowing.
	fastPoll = 1 * time.Second

	// connectDelay pads the handshake instant past both peers' next
	// polls, so each peer has polled at least once more and drained
	// its queue before attempting to connect.
	connectDelay = 5 * time.Second
)

// PeerState is one slot's half of the room body: handshake progress
// flags plus the queue of signals waiting for that peer's next poll.
type PeerState struct {
	SentSDP bool            `cbor:"sent_sdp"`
	ICEDone bool            `cbor:"ice_done"`
	Queue   []signal.Signal `cbor:"queue"`
}

// RoomData is the room body. The offer slot belongs to the room's
// creator, the answer slot to the joining peer.
type RoomData struct {
	SentConnect bool      `cbor:"sent_connect"`
	Offer       PeerState `cbor:"offer"`
	Answer      PeerState `cbor:"answer"`
}

// PeerMetadata is one slot's sweep-relevant state: which identity
// holds the slot and when it must poll next.
type PeerMetadata struct {
	Token    string
	NextPoll time.Time
}

// RoomMetadata is the room's object metadata. The offer slot is
// always present on a stored room; the answer slot is nil until a
// second peer joins.
type RoomMetadata struct {
	Offer  PeerMetadata
	Answer *PeerMetadata
}

func (m *RoomMetadata) EncodeMetadata() map[string]string {
	out := map[string]string{
		"offer_token":      m.Offer.Token,
		"offer_next_poll":  record.FormatTime(m.Offer.NextPoll),
		"answer_token":     "",
		"answer_next_poll": "",
	}
	if m.Answer != nil {
		out["answer_token"] = m.Answer.Token
		out["answer_next_poll"] = record.FormatTime(m.Answer.NextPoll)
	}
	return out
}

func (m *RoomMetadata) DecodeMetadata(raw map[string]string) error {
	offer, err := decodePeerSlot(raw, "offer_")
	if err != nil {
		return err
	}
	if offer == nil {
		return errors.New("offer slot is unbound")
	}
	answer, err := decodePeerSlot(raw, "answer_")
	if err != nil {
		return err
	}
	m.Offer = *offer
	m.Answer = answer
	return nil
}

// decodePeerSlot reads one slot's token and deadline. Both keys must
// exist; a slot whose token is empty is unoccupied and decodes to nil.
func decodePeerSlot(raw map[string]string, prefix string) (*PeerMetadata, error) {
	token, ok := raw[prefix+"token"]
	if !ok {
		return nil, errors.New("missing " + prefix + "token")
	}
	value, ok := raw[prefix+"next_poll"]
	if !ok {
		return nil, errors.New("missing " + prefix + "next_poll")
	}
	if token == "" {
		return nil, nil
	}
	nextPoll, err := record.ParseTime(value)
	if err != nil {
		return nil, err
	}
	if nextPoll.IsZero() {
		return nil, errors.New(prefix + "next_poll is unset for a bound slot")
	}
	return &PeerMetadata{Token: token, NextPoll: nextPoll}, nil
}

// Room is one rendezvous room. The record key is the room code.
type Room = record.Record[RoomData, *RoomMetadata]

var roomType = record.Type[RoomData, *RoomMetadata]{
	Prefix:    "room",
	KeyLength: RoomCodeLength,
	Defaults: func(now time.Time) (RoomData, *RoomMetadata) {
		return RoomData{}, &RoomMetadata{
			Offer: PeerMetadata{NextPoll: now.Add(firstPoll)},
		}
	},
	Blank: func() *RoomMetadata { return &RoomMetadata{} },
}

// joinRoom seats the identity in the room's free slot: the offer slot
// of a freshly created room, otherwise the answer slot. The joining
// peer's own queue receives a JoinRoom signal so its next poll
// confirms the room code. Returns false when both slots are taken.
func joinRoom(room *Room, auth *Auth, now time.Time) bool {
	isOffer := room.Meta.Offer.Token == ""
	if !isOffer && room.Meta.Answer != nil {
		return false
	}

	var queue *[]signal.Signal
	if isOffer {
		room.Meta.Offer.Token = auth.Key
		queue = &room.Payload.Offer.Queue
	} else {
		room.Meta.Answer = &PeerMetadata{
			Token:    auth.Key,
			NextPoll: now.Add(firstPoll),
		}
		queue = &room.Payload.Answer.Queue
	}

	bindAuth(auth, room.Key)
	*queue = append(*queue, signal.JoinRoom(room.Key))
	room.MarkDirty()
	return true
}

// refreshPoll advances the polling peer's deadline. The cadence
// tightens once the room is full, since signals may be waiting.
func refreshPoll(room *Room, token string, now time.Time) {
	interval := pollInterval
	if room.Meta.Answer != nil {
		interval = fastPoll
	}
	nextPoll := now.Add(interval)

	if room.Meta.Offer.Token == token {
		room.Meta.Offer.NextPoll = nextPoll
	} else {
		room.Meta.Answer.NextPoll = nextPoll
	}
	room.MarkDirty()
}

// sendSignals routes the sender's forwardable signals into the other
// peer's queue and tracks handshake progress, then checks whether the
// room is ready to schedule the connection attempt.
func sendSignals(room *Room, token string, signals []signal.Signal) {
	var sender *PeerState
	var queue *[]signal.Signal
	if room.Meta.Offer.Token == token {
		sender = &room.Payload.Offer
		queue = &room.Payload.Answer.Queue
	} else {
		sender = &room.Payload.Answer
		queue = &room.Payload.Offer.Queue
	}

	for _, s := range signals {
		if s.Sendable() {
			*queue = append(*queue, s)
			room.MarkDirty()
		}

		switch s.Kind {
		case signal.KindSetSDP:
			sender.SentSDP = true
			room.MarkDirty()
		case signal.KindAddCandidate:
			if s.EndOfCandidates() {
				sender.ICEDone = true
				room.MarkDirty()
			}
		}
	}

	tryScheduleConnect(room)
}

// tryScheduleConnect queues a ConnectAt signal for both peers once the
// handshake prerequisites hold: both session descriptions exchanged
// and at least one complete candidate list. The instant is chosen past
// both peers' next polls so each sees the signal before it fires. Runs
// at most once per room.
func tryScheduleConnect(room *Room) {
	data := &room.Payload
	if data.SentConnect {
		return
	}
	if !data.Offer.SentSDP || !data.Answer.SentSDP {
		return
	}
	if !data.Offer.ICEDone && !data.Answer.ICEDone {
		return
	}

	connectAt := room.Meta.Offer.NextPoll
	if room.Meta.Answer.NextPoll.After(connectAt) {
		connectAt = room.Meta.Answer.NextPoll
	}
	connectAt = connectAt.Add(connectDelay)

	s := signal.ConnectAt(connectAt)
	data.SentConnect = true
	data.Offer.Queue = append(data.Offer.Queue, s)
	data.Answer.Queue = append(data.Answer.Queue, s)
	room.MarkDirty()
}

// pullSignals drains the reader's queue and appends the NextPoll
// cadence signal, which is always delivered even when the queue is
// empty.
func pullSignals(room *Room, token string) []signal.Signal {
	var queue *[]signal.Signal
	var nextPoll time.Time
	if room.Meta.Offer.Token == token {
		queue = &room.Payload.Offer.Queue
		nextPoll = room.Meta.Offer.NextPoll
	} else {
		queue = &room.Payload.Answer.Queue
		nextPoll = room.Meta.Answer.NextPoll
	}

	out := *queue
	if len(out) > 0 {
		*queue = nil
		room.MarkDirty()
	}
	return append(out, signal.NextPoll(nextPoll))
}

// roomKillAt is the instant the sweep may delete the room: the
// earliest peer deadline plus the grace period, so the most overdue
// peer decides when the room goes.
func roomKillAt(meta *RoomMetadata) time.Time {
	killAt := meta.Offer.NextPoll
	if meta.Answer != nil && meta.Answer.NextPoll.Before(killAt) {
		killAt = meta.Answer.NextPoll
	}
	return killAt.Add(GracePeriod)
}
