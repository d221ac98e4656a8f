// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// Package signal defines the rendezvous wire protocol: the tagged
// union of messages a peer and the broker exchange while setting up a
// WebRTC connection.
//
// A signal is encoded as a single-key map whose key names the variant,
// in both JSON (the HTTP surface) and CBOR (queues persisted inside
// room records):
//
//	{"SetSDP": "v=0..."}
//	{"AddCandidate": ["candidate:...", "0", 0]}
//	{"JoinRoom": "ABC123"}
//	{"ConnectAt": 1767225605}
//	{"NextPoll": 1767225601}
//
// Only SetSDP and AddCandidate originate from peers and are forwarded
// to the other peer; the rest are synthesized by the broker.
package signal
