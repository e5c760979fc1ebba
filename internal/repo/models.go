package repo

import (
	"time"

	"github.com/google/uuid"
)

// Usuario representa membro da equipe do hemonúcleo.
type Usuario struct {
	ID        uuid.UUID
	Username  string
	Nome      string
	Email     string
	SenhaHash string
	CriadoEm  time.Time
}

// Sessao modela a tabela de tokens de sessão opacos. Apenas o hash do token
// é persistido; IP e user agent ficam registrados para auditoria.
type Sessao struct {
	ID        uuid.UUID
	Username  string
	TokenHash string
	IP        string
	UserAgent string
	EmitidoEm time.Time
	ExpiraEm  time.Time
}

// InsertSessaoParams agrupa os campos de criação de sessão.
type InsertSessaoParams struct {
	ID        uuid.UUID
	Username  string
	TokenHash string
	IP        string
	UserAgent string
	EmitidoEm time.Time
	ExpiraEm  time.Time
}

// Passkey modela credencial WebAuthn de um usuário.
type Passkey struct {
	ID           uuid.UUID
	UsuarioID    uuid.UUID
	CredentialID []byte
	PublicKey    []byte
	SignCount    uint32
	Transports   []string
	AAGUID       []byte
	Cloned       bool
	CriadoEm     time.Time
	AtualizadoEm *time.Time
}
