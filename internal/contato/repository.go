package contato

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provê acesso à tabela de mensagens.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert grava a mensagem recebida.
func (r *Repository) Insert(ctx context.Context, m Mensagem) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO mensagens (id, nome, email, assunto, mensagem, data)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, m.ID, m.Nome, m.Email, m.Assunto, m.Mensagem, m.Data)
	return err
}

// List devolve as mensagens mais recentes primeiro.
func (r *Repository) List(ctx context.Context) ([]Mensagem, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, nome, email, assunto, mensagem, data
        FROM mensagens
        ORDER BY data DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var itens []Mensagem
	for rows.Next() {
		var m Mensagem
		if err := rows.Scan(&m.ID, &m.Nome, &m.Email, &m.Assunto, &m.Mensagem, &m.Data); err != nil {
			return nil, err
		}
		itens = append(itens, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return itens, nil
}

// Delete remove a mensagem.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM mensagens WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
