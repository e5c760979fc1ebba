package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// TokenStatus é o resultado da validação de um token de sessão.
type TokenStatus string

const (
	// TokenValido indica sessão ativa.
	TokenValido TokenStatus = "valid"
	// TokenExpirado indica que o TTL se esgotou.
	TokenExpirado TokenStatus = "expired"
	// TokenInvalido indica valor malformado.
	TokenInvalido TokenStatus = "invalid"
	// TokenNaoEncontrado indica valor bem formado sem registro correspondente.
	TokenNaoEncontrado TokenStatus = "not_found"
)

// Dispositivo descreve o dispositivo de origem capturado no login.
type Dispositivo struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`
}

const tokenBytes = 32

// GenerateSessionToken cria token de sessão aleatório (256 bits) e seu hash persistível.
// Apenas o hash vai para o banco; o valor cru circula somente no cookie do cliente.
func GenerateSessionToken() (raw string, hashed string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	hashed = HashSessionToken(raw)
	return raw, hashed, nil
}

// HashSessionToken produz hash SHA-256 base64 do valor do token.
func HashSessionToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// WellFormedToken informa se o valor tem o formato de um token opaco emitido aqui.
func WellFormedToken(raw string) bool {
	if raw == "" {
		return false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	return err == nil && len(decoded) == tokenBytes
}

// SessionRedisKey monta chave do flag de sessão ativa no Redis.
func SessionRedisKey(hash string) string {
	return fmt.Sprintf("sessao:%s", hash)
}
