// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"errors"
	"time"

	"github.com/Tocutoeltuco/chessagon/lib/record"
)

// GracePeriod is how long past a deadline a record survives before the
// sweep removes it. It applies both to unbound identities (deadline =
// creation time + grace) and to rooms (deadline = the earliest of the
// peers' next polls).
const GracePeriod = 20 * time.Second

// TokenLength is the number of characters in an identity token. At 32
// characters over a 36-symbol alphabet the token is unguessable; it
// doubles as the bearer credential for every poll.
const TokenLength = 32

// AuthData is the body of an identity record: the code of the room the
// identity is bound to, or empty while unbound.
type AuthData struct {
	Room string `cbor:"room"`
}

// AuthMetadata is the sweep-relevant state of an identity, stored in
// object metadata so the sweep can act on a metadata-only listing. A
// zero KillAt means the identity is bound to a room and its lifetime
// is the room's.
type AuthMetadata struct {
	KillAt time.Time
}

func (m *AuthMetadata) EncodeMetadata() map[string]string {
	return map[string]string{"kill_at": record.FormatTime(m.KillAt)}
}

func (m *AuthMetadata) DecodeMetadata(raw map[string]string) error {
	value, ok := raw["kill_at"]
	if !ok {
		return errors.New("missing kill_at")
	}
	killAt, err := record.ParseTime(value)
	if err != nil {
		return err
	}
	m.KillAt = killAt
	return nil
}

// Auth is one peer identity. The record key is the bearer token.
type Auth = record.Record[AuthData, *AuthMetadata]

var authType = record.Type[AuthData, *AuthMetadata]{
	Prefix:    "auth",
	KeyLength: TokenLength,
	Defaults: func(now time.Time) (AuthData, *AuthMetadata) {
		return AuthData{}, &AuthMetadata{KillAt: now.Add(GracePeriod)}
	},
	Blank: func() *AuthMetadata { return &AuthMetadata{} },
}

// bindAuth ties an identity to a room. The identity's own kill
// deadline is cleared: from here on the room's deadline governs both.
func bindAuth(auth *Auth, code string) {
	auth.Payload.Room = code
	auth.Meta.KillAt = time.Time{}
	auth.MarkDirty()
}
