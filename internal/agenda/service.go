package agenda

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hemocz/hemonucleo/internal/util"
)

// ErrValidacao marca falhas de validação do formulário; o detalhe vai no
// texto do erro.
var ErrValidacao = errors.New("dados inválidos")

type repository interface {
	Create(ctx context.Context, ag *Agendamento) error
	Count(ctx context.Context, slot time.Time) (int, error)
	List(ctx context.Context) ([]Agendamento, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Capacidade() int
}

// Service reúne as regras de negócio dos agendamentos de coleta.
type Service struct {
	repo     repository
	horarios []int
	validos  map[int]struct{}
}

// NewService cria o serviço com a lista de horários publicados.
func NewService(repo repository, horarios []int) *Service {
	ordered := append([]int(nil), horarios...)
	sort.Ints(ordered)

	validos := make(map[int]struct{}, len(ordered))
	for _, h := range ordered {
		validos[h] = struct{}{}
	}
	return &Service{repo: repo, horarios: ordered, validos: validos}
}

// Horarios devolve os horários publicados em ordem crescente.
func (s *Service) Horarios() []int {
	return append([]int(nil), s.horarios...)
}

// Create valida o formulário e registra a coleta. As regras de concorrência
// (um pendente por e-mail, capacidade por horário) são aplicadas pelo
// repositório dentro da transação.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Agendamento, error) {
	input.Nome = strings.TrimSpace(input.Nome)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Telefone = strings.TrimSpace(input.Telefone)
	input.TipoSanguineo = NormalizeTipoSanguineo(input.TipoSanguineo)

	if input.Nome == "" {
		return nil, fmt.Errorf("%w: nome obrigatório", ErrValidacao)
	}
	if err := util.ValidateEmail(input.Email); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidacao, err)
	}
	if err := util.ValidateTelefone(input.Telefone); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidacao, err)
	}
	if !IsValidTipoSanguineo(input.TipoSanguineo) {
		return nil, fmt.Errorf("%w: tipo sanguíneo inválido", ErrValidacao)
	}
	if input.DataHora.IsZero() {
		return nil, fmt.Errorf("%w: data e hora obrigatórias", ErrValidacao)
	}
	// O instante chega com o offset do cliente; as regras de horário, a
	// contagem de capacidade e a disponibilidade operam todas em UTC.
	input.DataHora = input.DataHora.UTC()
	if !input.DataHora.After(util.Now()) {
		return nil, fmt.Errorf("%w: a coleta deve ser marcada para o futuro", ErrValidacao)
	}
	if _, ok := s.validos[input.DataHora.Hour()]; !ok {
		return nil, fmt.Errorf("%w: horário fora da agenda de coleta", ErrValidacao)
	}

	ag := &Agendamento{
		ID:            uuid.New(),
		Nome:          input.Nome,
		TipoSanguineo: input.TipoSanguineo,
		Telefone:      input.Telefone,
		Email:         input.Email,
		DataHora:      input.DataHora,
		Status:        StatusAguardando,
		CriadoEm:      util.Now(),
	}

	if err := s.repo.Create(ctx, ag); err != nil {
		return nil, err
	}
	return ag, nil
}

// Count devolve o total de coletas não canceladas na janela do instante.
func (s *Service) Count(ctx context.Context, slot time.Time) (int, error) {
	return s.repo.Count(ctx, slot)
}

// VagaHorario descreve a ocupação de um horário publicado.
type VagaHorario struct {
	Horario  int `json:"horario"`
	Ocupadas int `json:"ocupadas"`
	Vagas    int `json:"vagas"`
}

// Disponibilidade devolve a ocupação de cada horário publicado no dia.
func (s *Service) Disponibilidade(ctx context.Context, dia time.Time) ([]VagaHorario, error) {
	dia = dia.UTC()
	inicio := time.Date(dia.Year(), dia.Month(), dia.Day(), 0, 0, 0, 0, time.UTC)
	capacidade := s.repo.Capacidade()

	vagas := make([]VagaHorario, 0, len(s.horarios))
	for _, hora := range s.horarios {
		ocupadas, err := s.repo.Count(ctx, inicio.Add(time.Duration(hora)*time.Hour))
		if err != nil {
			return nil, err
		}
		livres := capacidade - ocupadas
		if livres < 0 {
			livres = 0
		}
		vagas = append(vagas, VagaHorario{Horario: hora, Ocupadas: ocupadas, Vagas: livres})
	}
	return vagas, nil
}

// List devolve todos os agendamentos para o painel da equipe.
func (s *Service) List(ctx context.Context) ([]Agendamento, error) {
	return s.repo.List(ctx)
}

// UpdateStatus muda o status do agendamento (ação da equipe).
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !IsValidStatus(status) {
		return ErrStatusInvalido
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// Delete remove o agendamento (ação da equipe).
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
