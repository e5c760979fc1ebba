package contato

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("mensagem não encontrada")
	ErrValidacao = errors.New("dados inválidos")
)

// Mensagem é um recado enviado pelo formulário público de contato.
type Mensagem struct {
	ID       uuid.UUID `json:"id"`
	Nome     string    `json:"nome"`
	Email    string    `json:"email"`
	Assunto  string    `json:"assunto"`
	Mensagem string    `json:"mensagem"`
	Data     time.Time `json:"data"`
}

// CreateInput encapsula os campos do formulário de contato.
type CreateInput struct {
	Nome     string `json:"nome"`
	Email    string `json:"email"`
	Assunto  string `json:"assunto"`
	Mensagem string `json:"mensagem"`
}
