package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries provê acesso às tabelas de usuários, sessões e passkeys.
type Queries struct {
	pool *pgxpool.Pool
}

// New cria instância de Queries sobre o pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// GetUsuarioByUsername busca usuário pelo username.
func (q *Queries) GetUsuarioByUsername(ctx context.Context, username string) (Usuario, error) {
	const query = `
        SELECT id, username, nome, email, senha_hash, criado_em
        FROM usuarios
        WHERE username = $1
    `
	var u Usuario
	err := q.pool.QueryRow(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.Nome, &u.Email, &u.SenhaHash, &u.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// GetUsuarioByID busca usuário pelo ID.
func (q *Queries) GetUsuarioByID(ctx context.Context, id uuid.UUID) (Usuario, error) {
	const query = `
        SELECT id, username, nome, email, senha_hash, criado_em
        FROM usuarios
        WHERE id = $1
    `
	var u Usuario
	err := q.pool.QueryRow(ctx, query, id).
		Scan(&u.ID, &u.Username, &u.Nome, &u.Email, &u.SenhaHash, &u.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	return u, nil
}

// InsertSessao registra uma nova sessão.
func (q *Queries) InsertSessao(ctx context.Context, arg InsertSessaoParams) (Sessao, error) {
	const query = `
        INSERT INTO sessoes (id, username, token_hash, ip, user_agent, emitido_em, expira_em)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, username, token_hash, ip, user_agent, emitido_em, expira_em
    `
	var s Sessao
	err := q.pool.QueryRow(ctx, query,
		arg.ID, arg.Username, arg.TokenHash, arg.IP, arg.UserAgent, arg.EmitidoEm, arg.ExpiraEm,
	).Scan(&s.ID, &s.Username, &s.TokenHash, &s.IP, &s.UserAgent, &s.EmitidoEm, &s.ExpiraEm)
	if err != nil {
		return Sessao{}, err
	}
	return s, nil
}

// GetSessaoByHash busca sessão pelo hash do token.
func (q *Queries) GetSessaoByHash(ctx context.Context, tokenHash string) (Sessao, error) {
	const query = `
        SELECT id, username, token_hash, ip, user_agent, emitido_em, expira_em
        FROM sessoes
        WHERE token_hash = $1
    `
	var s Sessao
	err := q.pool.QueryRow(ctx, query, tokenHash).
		Scan(&s.ID, &s.Username, &s.TokenHash, &s.IP, &s.UserAgent, &s.EmitidoEm, &s.ExpiraEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sessao{}, ErrNotFound
		}
		return Sessao{}, err
	}
	return s, nil
}

// DeleteSessaoByHash remove a sessão correspondente ao hash.
func (q *Queries) DeleteSessaoByHash(ctx context.Context, tokenHash string) error {
	cmd, err := q.pool.Exec(ctx, `DELETE FROM sessoes WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSessoesExpiradas remove sessões vencidas e devolve seus hashes,
// para que o caller limpe os flags correspondentes no Redis.
func (q *Queries) DeleteSessoesExpiradas(ctx context.Context, ref time.Time) ([]string, error) {
	rows, err := q.pool.Query(ctx, `
        DELETE FROM sessoes
        WHERE expira_em <= $1
        RETURNING token_hash
    `, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return hashes, nil
}

// ListPasskeysByUsuario lista credenciais WebAuthn do usuário.
func (q *Queries) ListPasskeysByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]Passkey, error) {
	rows, err := q.pool.Query(ctx, `
        SELECT id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, cloned, criado_em, atualizado_em
        FROM passkeys
        WHERE usuario_id = $1
        ORDER BY criado_em DESC
    `, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []Passkey
	for rows.Next() {
		pk, err := scanPasskey(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *pk)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return creds, nil
}

// GetPasskeyByCredentialID busca credencial pelo identificador do autenticador.
func (q *Queries) GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (*Passkey, error) {
	row := q.pool.QueryRow(ctx, `
        SELECT id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, cloned, criado_em, atualizado_em
        FROM passkeys
        WHERE credential_id = $1
    `, credentialID)
	return scanPasskey(row)
}

// InsertPasskey registra nova credencial.
func (q *Queries) InsertPasskey(ctx context.Context, pk Passkey) (*Passkey, error) {
	row := q.pool.QueryRow(ctx, `
        INSERT INTO passkeys (usuario_id, credential_id, public_key, sign_count, transports, aaguid, cloned)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, cloned, criado_em, atualizado_em
    `, pk.UsuarioID, pk.CredentialID, pk.PublicKey, int64(pk.SignCount), pk.Transports, pk.AAGUID, pk.Cloned)
	return scanPasskey(row)
}

// UpdatePasskeyCounter atualiza contador de assinaturas e flag de clonagem.
func (q *Queries) UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount uint32, cloned bool) error {
	cmd, err := q.pool.Exec(ctx, `
        UPDATE passkeys
        SET sign_count = $2, cloned = $3, atualizado_em = now()
        WHERE id = $1
    `, id, int64(signCount), cloned)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPasskey(row pgx.Row) (*Passkey, error) {
	var (
		pk   Passkey
		sign int64
	)
	err := row.Scan(&pk.ID, &pk.UsuarioID, &pk.CredentialID, &pk.PublicKey, &sign,
		&pk.Transports, &pk.AAGUID, &pk.Cloned, &pk.CriadoEm, &pk.AtualizadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sign < 0 {
		sign = 0
	}
	pk.SignCount = uint32(sign)
	return &pk, nil
}
