// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"fmt"
	"strconv"
	"time"
)

// Timestamp metadata convention: the decimal string of a Unix-epoch
// second count, or the empty string for "unset". Keeping every
// metadata value a string means the store's attribute map stays
// uniformly typed.

// FormatTime renders t for a metadata value. The zero time encodes as
// the empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// ParseTime parses a metadata timestamp value. The empty string parses
// to the zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
	}
	return time.Unix(seconds, 0).UTC(), nil
}
