// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tocutoeltuco/chessagon/lib/rendezvous"
	"github.com/Tocutoeltuco/chessagon/lib/signal"
)

// maxPollBody bounds a poll request body. A poll carries at most a
// session description and a handful of ICE candidates; 64KB is far
// above anything a real browser produces.
const maxPollBody = 64 << 10

// Broker is the rendezvous surface the handler exposes over HTTP.
// Satisfied by *rendezvous.Broker.
type Broker interface {
	Ident(ctx context.Context) (string, error)
	Poll(ctx context.Context, token string, incoming []signal.Signal) ([]signal.Signal, error)
}

// NewHandler routes the two broker endpoints:
//
//	POST /ident  mints an identity token
//	POST /poll   exchanges signals for the token in Authorization
//
// Anything else is 404; wrong methods on known paths are 405.
func NewHandler(broker Broker, logger *slog.Logger) http.Handler {
	h := &handler{broker: broker, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ident", h.ident)
	mux.HandleFunc("POST /poll", h.poll)
	return mux
}

type handler struct {
	broker Broker
	logger *slog.Logger
}

type identResponse struct {
	Token string `json:"token"`
}

func (h *handler) ident(w http.ResponseWriter, r *http.Request) {
	token, err := h.broker.Ident(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, identResponse{Token: token})
}

func (h *handler) poll(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token == "" {
		http.Error(w, "missing token", http.StatusForbidden)
		return
	}

	var incoming []signal.Signal
	body := http.MaxBytesReader(w, r.Body, maxPollBody)
	if err := json.NewDecoder(body).Decode(&incoming); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	outgoing, err := h.broker.Poll(r.Context(), token, incoming)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.reply(w, r, outgoing)
}

// reply writes a JSON response body.
func (h *handler) reply(w http.ResponseWriter, r *http.Request, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("writing response", "path", r.URL.Path, "error", err)
	}
}

// fail maps a broker error to an HTTP status. Request errors carry
// their own status and message; everything else is an internal error
// whose detail stays in the log.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *rendezvous.RequestError
	if errors.As(err, &reqErr) {
		http.Error(w, reqErr.Message, reqErr.Status)
		return
	}
	h.logger.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
