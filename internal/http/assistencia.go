package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hemocz/hemonucleo/internal/assistencia"
)

func writeAssistenciaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistencia.ErrValidacao):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, assistencia.ErrImagemInvalida):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, assistencia.ErrIDConflito):
		WriteError(w, http.StatusConflict, "VALIDATION", "identificador já em uso", nil)
	case errors.Is(err, assistencia.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "registro não encontrado", nil)
	default:
		log.Error().Err(err).Msg("assistência falhou")
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "erro interno", nil)
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// handleAnuncioCreate aceita multipart (campos id, titulo, texto e arquivo
// "image") ou JSON quando não há imagem.
func (h *Handler) handleAnuncioCreate(w http.ResponseWriter, r *http.Request) {
	var input assistencia.Anuncio

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(assistencia.MaxImagemBytes + 1<<20); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "formulário inválido", nil)
			return
		}

		id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
			return
		}
		input.ID = id
		input.Titulo = r.FormValue("titulo")
		input.Texto = r.FormValue("texto")

		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			body, readErr := io.ReadAll(io.LimitReader(file, assistencia.MaxImagemBytes+1))
			if readErr != nil {
				WriteError(w, http.StatusBadRequest, "VALIDATION", "leitura da imagem falhou", nil)
				return
			}
			input.Imagem = body
			input.Mime = header.Header.Get("Content-Type")
		} else if !errors.Is(err, http.ErrMissingFile) {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "arquivo inválido", nil)
			return
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
			return
		}
	}

	anuncio, err := h.assistencia.CreateAnuncio(r.Context(), input)
	if err != nil {
		writeAssistenciaError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, anuncio)
}

// handleAnuncioList devolve os anúncios publicados (sem bytes de imagem).
func (h *Handler) handleAnuncioList(w http.ResponseWriter, r *http.Request) {
	itens, err := h.assistencia.ListAnuncios(r.Context())
	if err != nil {
		writeAssistenciaError(w, err)
		return
	}
	if itens == nil {
		itens = []assistencia.Anuncio{}
	}
	WriteJSON(w, http.StatusOK, itens)
}

// handleAnuncioImagem serve a imagem: redireciona para o espelho quando há
// URL, senão entrega os bytes do banco.
func (h *Handler) handleAnuncioImagem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	mime, imagem, url, err := h.assistencia.AnuncioImagem(r.Context(), id)
	if err != nil {
		writeAssistenciaError(w, err)
		return
	}

	if url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(imagem)
}

// handleAnuncioDelete remove o anúncio.
func (h *Handler) handleAnuncioDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	if err := h.assistencia.DeleteAnuncio(r.Context(), id); err != nil {
		writeAssistenciaError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleCampanhaCreate insere uma campanha permanente.
func (h *Handler) handleCampanhaCreate(w http.ResponseWriter, r *http.Request) {
	var input assistencia.Campanha
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	campanha, err := h.assistencia.CreateCampanha(r.Context(), input)
	if err != nil {
		writeAssistenciaError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, campanha)
}

// handleCampanhaList lista as campanhas.
func (h *Handler) handleCampanhaList(w http.ResponseWriter, r *http.Request) {
	itens, err := h.assistencia.ListCampanhas(r.Context())
	if err != nil {
		writeAssistenciaError(w, err)
		return
	}
	if itens == nil {
		itens = []assistencia.Campanha{}
	}
	WriteJSON(w, http.StatusOK, itens)
}

// handleCampanhaDelete remove a campanha.
func (h *Handler) handleCampanhaDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	if err := h.assistencia.DeleteCampanha(r.Context(), id); err != nil {
		writeAssistenciaError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleEventoCreate insere um evento de coleta externa.
func (h *Handler) handleEventoCreate(w http.ResponseWriter, r *http.Request) {
	var input assistencia.Evento
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "payload inválido", nil)
		return
	}

	evento, err := h.assistencia.CreateEvento(r.Context(), input)
	if err != nil {
		writeAssistenciaError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, evento)
}

// handleEventoList lista os eventos.
func (h *Handler) handleEventoList(w http.ResponseWriter, r *http.Request) {
	itens, err := h.assistencia.ListEventos(r.Context())
	if err != nil {
		writeAssistenciaError(w, err)
		return
	}
	if itens == nil {
		itens = []assistencia.Evento{}
	}
	WriteJSON(w, http.StatusOK, itens)
}

// handleEventoDelete remove o evento.
func (h *Handler) handleEventoDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}
	if err := h.assistencia.DeleteEvento(r.Context(), id); err != nil {
		writeAssistenciaError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
