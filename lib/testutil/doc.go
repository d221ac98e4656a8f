// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small helpers shared across test suites.
package testutil
