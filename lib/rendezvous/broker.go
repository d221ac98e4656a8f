// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/zeebo/blake3"

	"github.com/Tocutoeltuco/chessagon/lib/bucket"
	"github.com/Tocutoeltuco/chessagon/lib/clock"
	"github.com/Tocutoeltuco/chessagon/lib/record"
	"github.com/Tocutoeltuco/chessagon/lib/signal"
)

// RequestError is a failure attributable to the request rather than
// the broker: the transport layer reports Status and Message to the
// peer verbatim. Any other error from the broker is internal.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

var (
	errInvalidToken   = &RequestError{http.StatusForbidden, "invalid token"}
	errInvalidSignals = &RequestError{http.StatusBadRequest, "invalid signals: can't send"}
	errAlreadyInRoom  = &RequestError{http.StatusBadRequest, "already in a room"}
	errRoomExpired    = &RequestError{http.StatusBadRequest, "room expired"}
	errRoomNotFound   = &RequestError{http.StatusNotFound, "room not found"}
	errRoomFull       = &RequestError{http.StatusBadRequest, "room is full"}
)

// Broker pairs peers through the object store. It holds no session
// state of its own, so multiple instances may share a store.
type Broker struct {
	store bucket.Store
	clock clock.Clock
	log   *slog.Logger
}

// New returns a Broker over the given store.
func New(store bucket.Store, clk clock.Clock, log *slog.Logger) *Broker {
	return &Broker{store: store, clock: clk, log: log}
}

// Ident mints a fresh identity and returns its bearer token. The
// identity must enter a room within the grace period or the sweep
// reclaims it.
func (b *Broker) Ident(ctx context.Context) (string, error) {
	auth, err := authType.Create(ctx, b.store, b.clock)
	if err != nil {
		return "", fmt.Errorf("creating identity: %w", err)
	}
	if err := auth.Write(ctx, b.store); err != nil {
		return "", err
	}
	b.log.Debug("identity created", "token", tokenDigest(auth.Key))
	return auth.Key, nil
}

// Poll handles one poll from the peer holding token. The incoming
// signals are routed to the peer's room mate; the reply is everything
// queued for this peer plus its next poll deadline.
//
// A peer not yet in a room is placed in one by this call: into the
// room named by a JoinRoom signal, or into a freshly created room
// when no JoinRoom is present.
func (b *Broker) Poll(ctx context.Context, token string, incoming []signal.Signal) ([]signal.Signal, error) {
	if !record.IsKey(token, TokenLength) {
		return nil, errInvalidToken
	}
	for _, s := range incoming {
		if s.Kind != signal.KindJoinRoom && !s.Sendable() {
			return nil, errInvalidSignals
		}
	}

	auth, err := authType.Load(ctx, b.store, token)
	if errors.Is(err, bucket.ErrNotFound) {
		return nil, errInvalidToken
	} else if err != nil {
		return nil, err
	}

	joinCode, hasJoin := findJoinCode(incoming)

	var room *Room
	inRoom := auth.Payload.Room != ""
	switch {
	case inRoom:
		if hasJoin {
			return nil, errAlreadyInRoom
		}
		room, err = roomType.Load(ctx, b.store, auth.Payload.Room)
		if errors.Is(err, bucket.ErrNotFound) {
			// The sweep got here first. The peer's identity is gone
			// with the room; it must start over from /ident.
			return nil, errRoomExpired
		} else if err != nil {
			return nil, err
		}

	case hasJoin:
		if !record.IsKey(joinCode, RoomCodeLength) {
			return nil, errRoomNotFound
		}
		room, err = roomType.Load(ctx, b.store, joinCode)
		if errors.Is(err, bucket.ErrNotFound) {
			return nil, errRoomNotFound
		} else if err != nil {
			return nil, err
		}
		if !joinRoom(room, auth, b.clock.Now()) {
			return nil, errRoomFull
		}
		b.log.Info("peer joined room", "room", room.Key, "token", tokenDigest(token))

	default:
		room, err = roomType.Create(ctx, b.store, b.clock)
		if err != nil {
			return nil, fmt.Errorf("creating room: %w", err)
		}
		// A fresh room always has a free offer slot.
		joinRoom(room, auth, b.clock.Now())
		b.log.Info("room created", "room", room.Key, "token", tokenDigest(token))
	}

	sendSignals(room, token, incoming)
	if inRoom {
		refreshPoll(room, token, b.clock.Now())
	}
	outgoing := pullSignals(room, token)

	if err := room.Write(ctx, b.store); err != nil {
		return nil, err
	}
	if err := auth.Write(ctx, b.store); err != nil {
		return nil, err
	}
	return outgoing, nil
}

// findJoinCode returns the room code of the first JoinRoom signal.
func findJoinCode(signals []signal.Signal) (string, bool) {
	for _, s := range signals {
		if s.Kind == signal.KindJoinRoom {
			return s.Room, true
		}
	}
	return "", false
}

// tokenDigest is a short hash of a bearer token, safe to log.
func tokenDigest(token string) string {
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
