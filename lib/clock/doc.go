// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock parameter instead of calling time.Now,
// time.After, or time.NewTicker directly. In production, Real() provides
// the standard library behavior. In tests, Fake() provides a
// deterministic clock that advances only when Advance is called, which
// is what makes the broker's deadline arithmetic (kill_at, next_poll,
// connect_at) testable without sleeping.
package clock
