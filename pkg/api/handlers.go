// Package api exposes the credit pipeline over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credsys/credit-pipeline/pkg/card"
	"github.com/credsys/credit-pipeline/pkg/client"
)

type Handlers struct {
	clients  *client.Service
	cards    *card.Service
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewHandlers(clients *client.Service, cards *card.Service, logger zerolog.Logger) *Handlers {
	return &Handlers{
		clients:  clients,
		cards:    cards,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handlers) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.clients.Create(r.Context(), client.CreateInput{
		Name:           req.Name,
		DocumentNumber: req.DocumentNumber,
		Email:          req.Email,
		Telephone:      req.Telephone,
		DateBirth:      req.DateBirth,
		MonthlyIncome:  req.MonthlyIncome,
	})
	switch {
	case errors.Is(err, client.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, "invalid document number")
		return
	case errors.Is(err, client.ErrDocumentExists), errors.Is(err, client.ErrEmailExists):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to create client")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, toClientResponse(c))
}

func (h *Handlers) GetClient(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	c, err := h.clients.GetByID(r.Context(), id)
	if errors.Is(err, client.ErrNotFound) {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load client")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toClientResponse(c))
}

func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list clients")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]ClientResponse, 0, len(clients))
	for _, c := range clients {
		out = append(out, toClientResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) ListClientCards(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	cards, err := h.cards.ListByClient(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list cards")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]CardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
