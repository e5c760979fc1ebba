package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema aplicado no boot. O índice parcial em agendamentos é o backstop da
// regra "um agendamento pendente por e-mail"; a checagem de capacidade por
// horário é serializada na aplicação via advisory lock.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS usuarios (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        username VARCHAR(50) UNIQUE NOT NULL,
        nome VARCHAR(100) NOT NULL,
        email VARCHAR(100) UNIQUE NOT NULL,
        senha_hash VARCHAR(255) NOT NULL,
        criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS sessoes (
        id UUID PRIMARY KEY,
        username VARCHAR(50) NOT NULL REFERENCES usuarios(username) ON DELETE CASCADE,
        token_hash VARCHAR(64) UNIQUE NOT NULL,
        ip VARCHAR(64) NOT NULL,
        user_agent TEXT NOT NULL DEFAULT '',
        emitido_em TIMESTAMPTZ NOT NULL,
        expira_em TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS sessoes_expira_em_idx ON sessoes (expira_em)`,
	`CREATE TABLE IF NOT EXISTS agendamentos (
        id UUID PRIMARY KEY,
        nome VARCHAR(100) NOT NULL,
        tipo_sanguineo VARCHAR(3) NOT NULL,
        telefone VARCHAR(20) NOT NULL,
        email VARCHAR(100) NOT NULL,
        data_hora TIMESTAMPTZ NOT NULL,
        status VARCHAR(10) NOT NULL DEFAULT 'Aguardando',
        criado_em TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS agendamentos_email_pendente_idx
        ON agendamentos (lower(email)) WHERE status = 'Aguardando'`,
	`CREATE INDEX IF NOT EXISTS agendamentos_data_hora_idx ON agendamentos (data_hora)`,
	`CREATE TABLE IF NOT EXISTS anuncios (
        id BIGINT PRIMARY KEY,
        titulo VARCHAR(200) NOT NULL,
        texto TEXT NOT NULL,
        mime VARCHAR(30),
        imagem BYTEA,
        imagem_url TEXT
    )`,
	`CREATE TABLE IF NOT EXISTS campanhas (
        id BIGINT PRIMARY KEY,
        titulo VARCHAR(200) NOT NULL,
        descricao TEXT NOT NULL,
        icone VARCHAR(50)
    )`,
	`CREATE TABLE IF NOT EXISTS eventos (
        id BIGINT PRIMARY KEY,
        titulo VARCHAR(200) NOT NULL,
        descricao TEXT NOT NULL,
        data_hora TIMESTAMPTZ NOT NULL,
        rua VARCHAR(200) NOT NULL,
        numero VARCHAR(20),
        bairro VARCHAR(100) NOT NULL,
        cidade VARCHAR(100) NOT NULL,
        estado VARCHAR(2) NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS mensagens (
        id UUID PRIMARY KEY,
        nome VARCHAR(100) NOT NULL,
        email VARCHAR(100) NOT NULL,
        assunto VARCHAR(200) NOT NULL,
        mensagem TEXT NOT NULL,
        data TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS passkeys (
        id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
        usuario_id UUID NOT NULL REFERENCES usuarios(id) ON DELETE CASCADE,
        credential_id BYTEA UNIQUE NOT NULL,
        public_key BYTEA NOT NULL,
        sign_count BIGINT NOT NULL DEFAULT 0,
        transports TEXT[],
        aaguid BYTEA,
        cloned BOOLEAN NOT NULL DEFAULT FALSE,
        criado_em TIMESTAMPTZ NOT NULL DEFAULT now(),
        atualizado_em TIMESTAMPTZ
    )`,
}

// EnsureSchema cria as tabelas e índices que ainda não existem.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// SeedAdmin insere o administrador inicial quando a tabela de usuários está vazia.
func SeedAdmin(ctx context.Context, pool *pgxpool.Pool, username, nome, email, senhaHash string) (bool, error) {
	if username == "" || senhaHash == "" {
		return false, nil
	}

	var total int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM usuarios`).Scan(&total); err != nil {
		return false, err
	}
	if total > 0 {
		return false, nil
	}

	if email == "" {
		email = username + "@localhost"
	}

	_, err := pool.Exec(ctx, `
        INSERT INTO usuarios (username, nome, email, senha_hash)
        VALUES ($1, $2, $3, $4)
    `, username, nome, email, senhaHash)
	if err != nil {
		return false, err
	}
	return true, nil
}
