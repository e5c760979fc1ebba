package agenda

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hemocz/hemonucleo/internal/db"
)

// Repository provê acesso à tabela de agendamentos.
type Repository struct {
	pool       *pgxpool.Pool
	capacidade int
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool, capacidade int) *Repository {
	return &Repository{pool: pool, capacidade: capacidade}
}

// Capacidade devolve o limite de coletas por janela de uma hora.
func (r *Repository) Capacidade() int {
	return r.capacidade
}

// Create insere o agendamento aplicando as duas regras de concorrência na
// mesma transação: um pendente por e-mail e capacidade por horário. Os
// advisory locks serializam requisições concorrentes para o mesmo e-mail ou
// mesma janela; o índice parcial único é o backstop do primeiro caso.
func (r *Repository) Create(ctx context.Context, ag *Agendamento) error {
	slot := SlotDe(ag.DataHora)
	emailKey := "agendamento:email:" + strings.ToLower(ag.Email)
	slotKey := "agendamento:slot:" + slot.UTC().Format(time.RFC3339)

	err := db.WithTx(ctx, r.pool, func(tctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(tctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, emailKey); err != nil {
			return err
		}
		if _, err := tx.Exec(tctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, slotKey); err != nil {
			return err
		}

		var pendentes int
		err := tx.QueryRow(tctx, `
            SELECT COUNT(*) FROM agendamentos
            WHERE lower(email) = lower($1) AND status = $2
        `, ag.Email, StatusAguardando).Scan(&pendentes)
		if err != nil {
			return err
		}
		if pendentes > 0 {
			return ErrAgendamentoPendente
		}

		var ocupadas int
		err = tx.QueryRow(tctx, `
            SELECT COUNT(*) FROM agendamentos
            WHERE data_hora >= $1 AND data_hora < $2 AND status <> $3
        `, slot, slot.Add(time.Hour), StatusCancelado).Scan(&ocupadas)
		if err != nil {
			return err
		}
		if ocupadas >= r.capacidade {
			return ErrHorarioLotado
		}

		_, err = tx.Exec(tctx, `
            INSERT INTO agendamentos (id, nome, tipo_sanguineo, telefone, email, data_hora, status, criado_em)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        `, ag.ID, ag.Nome, ag.TipoSanguineo, ag.Telefone, ag.Email, ag.DataHora, ag.Status, ag.CriadoEm)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrAgendamentoPendente
		}
		return err
	}
	return nil
}

// Count conta agendamentos não cancelados na janela de uma hora do instante
// informado. Usa a mesma regra de contagem aplicada no Create.
func (r *Repository) Count(ctx context.Context, slot time.Time) (int, error) {
	slot = SlotDe(slot)

	var total int
	err := r.pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM agendamentos
        WHERE data_hora >= $1 AND data_hora < $2 AND status <> $3
    `, slot, slot.Add(time.Hour), StatusCancelado).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// List devolve todos os agendamentos ordenados pela data da coleta.
func (r *Repository) List(ctx context.Context) ([]Agendamento, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, nome, tipo_sanguineo, telefone, email, data_hora, status, criado_em
        FROM agendamentos
        ORDER BY data_hora ASC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var itens []Agendamento
	for rows.Next() {
		var ag Agendamento
		if err := rows.Scan(&ag.ID, &ag.Nome, &ag.TipoSanguineo, &ag.Telefone, &ag.Email, &ag.DataHora, &ag.Status, &ag.CriadoEm); err != nil {
			return nil, err
		}
		itens = append(itens, ag)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return itens, nil
}

// UpdateStatus altera o status do agendamento.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE agendamentos SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete remove o agendamento.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM agendamentos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
