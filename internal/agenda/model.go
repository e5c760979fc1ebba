package agenda

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("agendamento não encontrado")
	// ErrAgendamentoPendente indica que o e-mail já possui coleta aguardando.
	ErrAgendamentoPendente = errors.New("já existe um agendamento pendente para este e-mail")
	// ErrHorarioLotado indica que o horário atingiu a capacidade de coletas.
	ErrHorarioLotado = errors.New("horário sem vagas disponíveis")
	ErrStatusInvalido = errors.New("status inválido")
)

const (
	StatusAguardando = "Aguardando"
	StatusColetado   = "Coletado"
	StatusCancelado  = "Cancelado"
)

var validStatuses = map[string]struct{}{
	StatusAguardando: {},
	StatusColetado:   {},
	StatusCancelado:  {},
}

var tiposSanguineos = map[string]struct{}{
	"A+": {}, "A-": {},
	"B+": {}, "B-": {},
	"AB+": {}, "AB-": {},
	"O+": {}, "O-": {},
}

// Agendamento representa uma coleta de sangue marcada por um doador.
type Agendamento struct {
	ID            uuid.UUID `json:"id"`
	Nome          string    `json:"nome"`
	TipoSanguineo string    `json:"tipoSanguineo"`
	Telefone      string    `json:"telefone"`
	Email         string    `json:"email"`
	DataHora      time.Time `json:"dataHora"`
	Status        string    `json:"status"`
	CriadoEm      time.Time `json:"criadoEm"`
}

// CreateInput encapsula os campos do formulário público de agendamento.
type CreateInput struct {
	Nome          string    `json:"nome"`
	TipoSanguineo string    `json:"tipoSanguineo"`
	Telefone      string    `json:"telefone"`
	Email         string    `json:"email"`
	DataHora      time.Time `json:"dataHora"`
}

// IsValidStatus indica se o status é aceito.
func IsValidStatus(status string) bool {
	_, ok := validStatuses[status]
	return ok
}

// IsValidTipoSanguineo indica se o tipo sanguíneo pertence ao conjunto ABO/Rh.
func IsValidTipoSanguineo(tipo string) bool {
	_, ok := tiposSanguineos[strings.ToUpper(strings.TrimSpace(tipo))]
	return ok
}

// NormalizeTipoSanguineo padroniza o tipo em maiúsculas sem espaços.
func NormalizeTipoSanguineo(tipo string) string {
	return strings.ToUpper(strings.TrimSpace(tipo))
}

// SlotDe trunca o instante para o início da janela de uma hora.
func SlotDe(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}
