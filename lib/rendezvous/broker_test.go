// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Tocutoeltuco/chessagon/lib/bucket"
	"github.com/Tocutoeltuco/chessagon/lib/clock"
	"github.com/Tocutoeltuco/chessagon/lib/record"
	"github.com/Tocutoeltuco/chessagon/lib/signal"
)

var brokerNow = time.Unix(1767225600, 0).UTC()

func newTestBroker(t *testing.T) (*Broker, bucket.Store, *clock.FakeClock) {
	t.Helper()
	store := bucket.NewMemory()
	clk := clock.Fake(brokerNow)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, clk, log), store, clk
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want RequestError with status %d", err, status)
	}
	if reqErr.Status != status {
		t.Fatalf("status = %d (%s), want %d", reqErr.Status, reqErr.Message, status)
	}
}

// enterRoom runs the create-or-join poll for a fresh identity and
// returns its token plus the room code it landed in.
func enterRoom(t *testing.T, b *Broker, join ...signal.Signal) (token, code string) {
	t.Helper()
	ctx := context.Background()

	token, err := b.Ident(ctx)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}
	reply, err := b.Poll(ctx, token, join)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}

	for _, s := range reply {
		if s.Kind == signal.KindJoinRoom {
			return token, s.Room
		}
	}
	t.Fatal("reply carries no JoinRoom signal")
	return "", ""
}

func TestIdentMintsToken(t *testing.T) {
	b, store, _ := newTestBroker(t)
	ctx := context.Background()

	token, err := b.Ident(ctx)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}
	if !record.IsKey(token, TokenLength) {
		t.Errorf("token %q is malformed", token)
	}

	obj, err := store.Get(ctx, "auth:"+token)
	if err != nil {
		t.Fatalf("identity not persisted: %v", err)
	}
	want := record.FormatTime(brokerNow.Add(GracePeriod))
	if got := obj.Metadata["kill_at"]; got != want {
		t.Errorf("kill_at = %q, want %q", got, want)
	}
}

func TestPollRejectsBadTokens(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	// Malformed.
	_, err := b.Poll(ctx, "short", nil)
	requireStatus(t, err, http.StatusForbidden)

	// Well-formed but unknown.
	_, err = b.Poll(ctx, strings.Repeat("A", TokenLength), nil)
	requireStatus(t, err, http.StatusForbidden)
}

func TestPollRejectsBrokerOnlySignals(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	token, err := b.Ident(ctx)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}
	_, err = b.Poll(ctx, token, []signal.Signal{signal.ConnectAt(brokerNow)})
	requireStatus(t, err, http.StatusBadRequest)
	_, err = b.Poll(ctx, token, []signal.Signal{signal.NextPoll(brokerNow)})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestFirstPollCreatesRoom(t *testing.T) {
	b, store, _ := newTestBroker(t)
	ctx := context.Background()

	token, err := b.Ident(ctx)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}
	reply, err := b.Poll(ctx, token, nil)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if len(reply) != 2 {
		t.Fatalf("reply has %d signals, want JoinRoom and NextPoll", len(reply))
	}
	if reply[0].Kind != signal.KindJoinRoom || !record.IsKey(reply[0].Room, RoomCodeLength) {
		t.Errorf("reply[0] = %v (room %q), want JoinRoom with a valid code", reply[0], reply[0].Room)
	}
	if reply[1].Kind != signal.KindNextPoll {
		t.Fatalf("reply[1] = %v, want NextPoll", reply[1])
	}
	if want := brokerNow.Add(firstPoll); !reply[1].At.Equal(want) {
		t.Errorf("first NextPoll = %v, want %v", reply[1].At, want)
	}

	// The creator holds the offer slot and its identity is now bound:
	// no private kill deadline.
	obj, err := store.Get(ctx, "room:"+reply[0].Room)
	if err != nil {
		t.Fatalf("room not persisted: %v", err)
	}
	if got := obj.Metadata["offer_token"]; got != token {
		t.Errorf("offer_token = %q, want creator's token", got)
	}
	authObj, err := store.Get(ctx, "auth:"+token)
	if err != nil {
		t.Fatalf("identity not persisted: %v", err)
	}
	if got := authObj.Metadata["kill_at"]; got != "" {
		t.Errorf("bound identity kill_at = %q, want unset", got)
	}
}

func TestJoinRoom(t *testing.T) {
	b, store, _ := newTestBroker(t)
	ctx := context.Background()

	_, code := enterRoom(t, b)
	guest, guestRoom := enterRoom(t, b, signal.JoinRoom(code))
	if guestRoom != code {
		t.Errorf("guest landed in %q, want %q", guestRoom, code)
	}

	obj, err := store.Get(ctx, "room:"+code)
	if err != nil {
		t.Fatalf("Get room: %v", err)
	}
	if got := obj.Metadata["answer_token"]; got != guest {
		t.Errorf("answer_token = %q, want guest's token", got)
	}
}

func TestJoinFullRoom(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	_, code := enterRoom(t, b)
	enterRoom(t, b, signal.JoinRoom(code))

	third, err := b.Ident(ctx)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}
	_, err = b.Poll(ctx, third, []signal.Signal{signal.JoinRoom(code)})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestJoinUnknownRoom(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	token, err := b.Ident(ctx)
	if err != nil {
		t.Fatalf("Ident: %v", err)
	}

	_, err = b.Poll(ctx, token, []signal.Signal{signal.JoinRoom("ZZZZZZ")})
	requireStatus(t, err, http.StatusNotFound)

	// Malformed codes cannot name a room either.
	_, err = b.Poll(ctx, token, []signal.Signal{signal.JoinRoom("nope")})
	requireStatus(t, err, http.StatusNotFound)
}

func TestJoinWhileAlreadyInRoom(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	token, code := enterRoom(t, b)
	_, err := b.Poll(ctx, token, []signal.Signal{signal.JoinRoom(code)})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestPollExpiredRoom(t *testing.T) {
	b, store, _ := newTestBroker(t)
	ctx := context.Background()

	token, code := enterRoom(t, b)
	if err := store.Delete(ctx, "room:"+code); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err := b.Poll(ctx, token, nil)
	requireStatus(t, err, http.StatusBadRequest)
}

func TestHandshakeRelayAndConnect(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	creator, code := enterRoom(t, b)
	guest, _ := enterRoom(t, b, signal.JoinRoom(code))

	// Creator offers. Nothing is queued for it yet.
	reply, err := b.Poll(ctx, creator, []signal.Signal{signal.SetSDP("offer-sdp")})
	if err != nil {
		t.Fatalf("creator Poll: %v", err)
	}
	if len(reply) != 1 || reply[0].Kind != signal.KindNextPoll {
		t.Fatalf("creator reply = %v, want only NextPoll", reply)
	}
	// Room is full, so the cadence is the fast one.
	if want := brokerNow.Add(fastPoll); !reply[0].At.Equal(want) {
		t.Errorf("NextPoll = %v, want %v", reply[0].At, want)
	}

	// Guest answers and finishes its candidate list. It receives the
	// relayed offer, and the completed prerequisites trigger the
	// scheduled connect.
	reply, err = b.Poll(ctx, guest, []signal.Signal{
		signal.SetSDP("answer-sdp"),
		signal.AddCandidate(signal.Candidate{}),
	})
	if err != nil {
		t.Fatalf("guest Poll: %v", err)
	}
	if len(reply) != 3 {
		t.Fatalf("guest reply = %v, want SetSDP, ConnectAt, NextPoll", reply)
	}
	if reply[0].Kind != signal.KindSetSDP || reply[0].SDP != "offer-sdp" {
		t.Errorf("reply[0] = %v, want relayed offer", reply[0])
	}
	if reply[1].Kind != signal.KindConnectAt {
		t.Fatalf("reply[1] = %v, want ConnectAt", reply[1])
	}
	// Both deadlines were now+firstPoll when the connect was
	// scheduled, so the instant is that plus the connect delay.
	if want := brokerNow.Add(firstPoll + connectDelay); !reply[1].At.Equal(want) {
		t.Errorf("ConnectAt = %v, want %v", reply[1].At, want)
	}
	if reply[2].Kind != signal.KindNextPoll {
		t.Errorf("reply[2] = %v, want NextPoll", reply[2])
	}

	// Creator drains: the answer, the end-of-candidates marker, and
	// the same connect instant.
	reply, err = b.Poll(ctx, creator, nil)
	if err != nil {
		t.Fatalf("creator Poll: %v", err)
	}
	if len(reply) != 4 {
		t.Fatalf("creator reply = %v, want SetSDP, AddCandidate, ConnectAt, NextPoll", reply)
	}
	if reply[0].Kind != signal.KindSetSDP || reply[0].SDP != "answer-sdp" {
		t.Errorf("reply[0] = %v, want relayed answer", reply[0])
	}
	if !reply[1].EndOfCandidates() {
		t.Errorf("reply[1] = %v, want end-of-candidates marker", reply[1])
	}
	if reply[2].Kind != signal.KindConnectAt || !reply[2].At.Equal(brokerNow.Add(firstPoll+connectDelay)) {
		t.Errorf("reply[2] = %v, want the scheduled connect instant", reply[2])
	}
}

func TestConnectScheduledOnce(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	creator, code := enterRoom(t, b)
	guest, _ := enterRoom(t, b, signal.JoinRoom(code))

	if _, err := b.Poll(ctx, creator, []signal.Signal{signal.SetSDP("offer-sdp")}); err != nil {
		t.Fatalf("creator Poll: %v", err)
	}
	if _, err := b.Poll(ctx, guest, []signal.Signal{
		signal.SetSDP("answer-sdp"),
		signal.AddCandidate(signal.Candidate{}),
	}); err != nil {
		t.Fatalf("guest Poll: %v", err)
	}

	// Draining the first ConnectAt and completing the other candidate
	// list must not schedule a second one.
	if _, err := b.Poll(ctx, creator, []signal.Signal{signal.AddCandidate(signal.Candidate{})}); err != nil {
		t.Fatalf("creator Poll: %v", err)
	}
	reply, err := b.Poll(ctx, guest, nil)
	if err != nil {
		t.Fatalf("guest Poll: %v", err)
	}
	for _, s := range reply {
		if s.Kind == signal.KindConnectAt {
			t.Fatalf("second ConnectAt delivered: %v", reply)
		}
	}
}

func TestLonePeerPollsSlowly(t *testing.T) {
	b, _, clk := newTestBroker(t)
	ctx := context.Background()

	token, _ := enterRoom(t, b)
	clk.Advance(firstPoll)

	reply, err := b.Poll(ctx, token, nil)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	last := reply[len(reply)-1]
	if last.Kind != signal.KindNextPoll {
		t.Fatalf("last signal = %v, want NextPoll", last)
	}
	if want := clk.Now().Add(pollInterval); !last.At.Equal(want) {
		t.Errorf("NextPoll = %v, want %v", last.At, want)
	}
}
