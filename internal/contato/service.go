package contato

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hemocz/hemonucleo/internal/util"
)

type repository interface {
	Insert(ctx context.Context, m Mensagem) error
	List(ctx context.Context) ([]Mensagem, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service recebe mensagens do formulário público e as disponibiliza à equipe.
type Service struct {
	repo   repository
	mailer Mailer
}

// NewService cria o serviço; mailer pode ser nil.
func NewService(repo repository, mailer Mailer) *Service {
	return &Service{repo: repo, mailer: mailer}
}

// Enviar valida, persiste e repassa a mensagem por e-mail. A falha no relay
// não invalida o recebimento: a mensagem já está guardada para a equipe.
func (s *Service) Enviar(ctx context.Context, input CreateInput) (*Mensagem, error) {
	input.Nome = strings.TrimSpace(input.Nome)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Assunto = strings.TrimSpace(input.Assunto)
	input.Mensagem = strings.TrimSpace(input.Mensagem)

	if input.Nome == "" {
		return nil, fmt.Errorf("%w: nome obrigatório", ErrValidacao)
	}
	if err := util.ValidateEmail(input.Email); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidacao, err)
	}
	if input.Assunto == "" {
		return nil, fmt.Errorf("%w: assunto obrigatório", ErrValidacao)
	}
	if input.Mensagem == "" {
		return nil, fmt.Errorf("%w: mensagem obrigatória", ErrValidacao)
	}

	msg := Mensagem{
		ID:       uuid.New(),
		Nome:     input.Nome,
		Email:    input.Email,
		Assunto:  input.Assunto,
		Mensagem: input.Mensagem,
		Data:     util.Now(),
	}

	if err := s.repo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	if s.mailer != nil {
		if err := s.mailer.Send(msg); err != nil {
			log.Warn().Err(err).Str("mensagem", msg.ID.String()).Msg("repasse por e-mail falhou")
		}
	}

	return &msg, nil
}

// List devolve as mensagens para o painel da equipe.
func (s *Service) List(ctx context.Context) ([]Mensagem, error) {
	return s.repo.List(ctx)
}

// Delete remove a mensagem.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
