package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hemocz/hemonucleo/internal/contato"
)

// handleContatoCreate recebe a mensagem do formulário público.
func (h *Handler) handleContatoCreate(w http.ResponseWriter, r *http.Request) {
	var input contato.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	msg, err := h.contato.Enviar(r.Context(), input)
	if err != nil {
		if errors.Is(err, contato.ErrValidacao) {
			WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
			return
		}
		log.Error().Err(err).Msg("contato falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	WriteJSON(w, http.StatusCreated, msg)
}

// handleMensagemList lista as mensagens recebidas (painel da equipe).
func (h *Handler) handleMensagemList(w http.ResponseWriter, r *http.Request) {
	itens, err := h.contato.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("listagem de mensagens falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}
	if itens == nil {
		itens = []contato.Mensagem{}
	}
	WriteJSON(w, http.StatusOK, itens)
}

// handleMensagemDelete remove uma mensagem.
func (h *Handler) handleMensagemDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.contato.Delete(r.Context(), id); err != nil {
		if errors.Is(err, contato.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "mensagem não encontrada", nil)
			return
		}
		log.Error().Err(err).Msg("remoção de mensagem falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
