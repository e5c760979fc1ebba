package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hemocz/hemonucleo/internal/agenda"
	"github.com/hemocz/hemonucleo/internal/util"
)

// handleAgendamentoCreate é o endpoint público de marcação de coleta.
func (h *Handler) handleAgendamentoCreate(w http.ResponseWriter, r *http.Request) {
	var input agenda.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	ag, err := h.agenda.Create(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, agenda.ErrValidacao):
			WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		case errors.Is(err, agenda.ErrAgendamentoPendente):
			WriteError(w, http.StatusConflict, "AGENDAMENTO_PENDENTE", err.Error(), nil)
		case errors.Is(err, agenda.ErrHorarioLotado):
			WriteError(w, http.StatusConflict, "HORARIO_LOTADO", err.Error(), nil)
		default:
			log.Error().Err(err).Msg("agendamento falhou")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		}
		return
	}

	WriteJSON(w, http.StatusCreated, ag)
}

// handleAgendamentoVagas devolve a ocupação por horário publicado no dia
// informado (?data=AAAA-MM-DD; default hoje). Endpoint público usado pelo
// formulário para pintar as vagas restantes.
func (h *Handler) handleAgendamentoVagas(w http.ResponseWriter, r *http.Request) {
	dia := util.Now()
	if raw := r.URL.Query().Get("data"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "data inválida, use AAAA-MM-DD", nil)
			return
		}
		dia = parsed
	}

	vagas, err := h.agenda.Disponibilidade(r.Context(), dia)
	if err != nil {
		log.Error().Err(err).Msg("disponibilidade falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"data":     dia.Format("2006-01-02"),
		"horarios": vagas,
	})
}

// handleAgendamentoList lista todos os agendamentos para o painel.
func (h *Handler) handleAgendamentoList(w http.ResponseWriter, r *http.Request) {
	itens, err := h.agenda.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("listagem de agendamentos falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}
	if itens == nil {
		itens = []agenda.Agendamento{}
	}
	WriteJSON(w, http.StatusOK, itens)
}

// handleAgendamentoStatus muda o status de um agendamento.
func (h *Handler) handleAgendamentoStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	if err := h.agenda.UpdateStatus(r.Context(), id, req.Status); err != nil {
		switch {
		case errors.Is(err, agenda.ErrStatusInvalido):
			WriteError(w, http.StatusBadRequest, "VALIDATION", "status inválido", nil)
		case errors.Is(err, agenda.ErrNotFound):
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "agendamento não encontrado", nil)
		default:
			log.Error().Err(err).Msg("atualização de status falhou")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		}
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleAgendamentoDelete remove um agendamento.
func (h *Handler) handleAgendamentoDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.agenda.Delete(r.Context(), id); err != nil {
		if errors.Is(err, agenda.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "agendamento não encontrado", nil)
			return
		}
		log.Error().Err(err).Msg("remoção de agendamento falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
