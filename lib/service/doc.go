// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the HTTP surface of the rendezvous broker:
// listener lifecycle with graceful shutdown, request routing for the
// two broker endpoints, and structured logger construction.
package service
