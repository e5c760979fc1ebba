package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hemocz/hemonucleo/internal/repo"
)

var (
	// ErrPasskeyNaoConfigurada indica usuário sem credenciais WebAuthn.
	ErrPasskeyNaoConfigurada = errors.New("passkey não configurada")
	// ErrDesafioInvalido indica desafio WebAuthn ausente ou expirado.
	ErrDesafioInvalido = errors.New("desafio inválido ou expirado")
)

const (
	passkeyRegistroPrefix = "webauthn:registro:"
	passkeyLoginPrefix    = "webauthn:login:"
	passkeyDesafioTTL     = 5 * time.Minute
)

type passkeyRepository interface {
	GetUsuarioByUsername(ctx context.Context, username string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	ListPasskeysByUsuario(ctx context.Context, usuarioID uuid.UUID) ([]repo.Passkey, error)
	GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (*repo.Passkey, error)
	InsertPasskey(ctx context.Context, pk repo.Passkey) (*repo.Passkey, error)
	UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount uint32, cloned bool) error
}

// PasskeyService gerencia registro e login por WebAuthn da equipe. O estado
// do desafio vive no Redis com TTL curto; a credencial persiste no Postgres.
type PasskeyService struct {
	repo  passkeyRepository
	redis redisCommander
	wa    *webauthn.WebAuthn
}

// NewPasskeyService cria o serviço de passkeys.
func NewPasskeyService(r *repo.Queries, redisClient *redis.Client, wa *webauthn.WebAuthn) *PasskeyService {
	return &PasskeyService{repo: r, redis: redisClient, wa: wa}
}

// BeginRegistration prepara o desafio de registro para usuário autenticado.
func (s *PasskeyService) BeginRegistration(ctx context.Context, usuarioID uuid.UUID) (string, *protocol.CredentialCreation, error) {
	waUser, err := s.loadWebauthnUser(ctx, usuarioID)
	if err != nil {
		return "", nil, err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(waUser.credentials))
	for _, cred := range waUser.credentials {
		exclusions = append(exclusions, cred.Descriptor())
	}

	selection := protocol.AuthenticatorSelection{UserVerification: protocol.VerificationRequired}

	opts, sessionData, err := s.wa.BeginRegistration(
		waUser,
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(selection),
	)
	if err != nil {
		return "", nil, err
	}

	sessionID := uuid.NewString()
	if err := s.storeDesafio(ctx, passkeyRegistroPrefix, sessionID, sessionData, usuarioID); err != nil {
		return "", nil, err
	}

	return sessionID, opts, nil
}

// FinishRegistration conclui o registro e persiste a credencial.
func (s *PasskeyService) FinishRegistration(ctx context.Context, sessionID string, body io.Reader) error {
	sessionData, usuarioID, err := s.consumeDesafio(ctx, passkeyRegistroPrefix, sessionID)
	if err != nil {
		return err
	}

	waUser, err := s.loadWebauthnUser(ctx, usuarioID)
	if err != nil {
		return err
	}

	response, err := protocol.ParseCredentialCreationResponseBody(body)
	if err != nil {
		return ErrDesafioInvalido
	}

	credential, err := s.wa.CreateCredential(waUser, *sessionData, response)
	if err != nil {
		return ErrDesafioInvalido
	}

	transports := make([]string, 0, len(credential.Transport))
	for _, transport := range credential.Transport {
		transports = append(transports, string(transport))
	}

	_, err = s.repo.InsertPasskey(ctx, repo.Passkey{
		UsuarioID:    usuarioID,
		CredentialID: credential.ID,
		PublicKey:    credential.PublicKey,
		SignCount:    credential.Authenticator.SignCount,
		Transports:   transports,
		AAGUID:       credential.Authenticator.AAGUID,
		Cloned:       credential.Authenticator.CloneWarning,
	})
	return err
}

// BeginLogin prepara o desafio de login para o username informado.
func (s *PasskeyService) BeginLogin(ctx context.Context, username string) (string, *protocol.CredentialAssertion, error) {
	user, err := s.repo.GetUsuarioByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", nil, ErrPasskeyNaoConfigurada
		}
		return "", nil, err
	}

	waUser, err := s.loadWebauthnUser(ctx, user.ID)
	if err != nil {
		return "", nil, err
	}
	if len(waUser.credentials) == 0 {
		return "", nil, ErrPasskeyNaoConfigurada
	}

	opts, sessionData, err := s.wa.BeginLogin(waUser)
	if err != nil {
		return "", nil, err
	}

	sessionID := uuid.NewString()
	if err := s.storeDesafio(ctx, passkeyLoginPrefix, sessionID, sessionData, user.ID); err != nil {
		return "", nil, err
	}

	return sessionID, opts, nil
}

// FinishLogin valida a assinatura do autenticador e devolve o usuário
// correspondente; a emissão da sessão fica a cargo do SessionService.
func (s *PasskeyService) FinishLogin(ctx context.Context, sessionID string, body io.Reader) (repo.Usuario, error) {
	sessionData, usuarioID, err := s.consumeDesafio(ctx, passkeyLoginPrefix, sessionID)
	if err != nil {
		return repo.Usuario{}, err
	}

	user, err := s.repo.GetUsuarioByID(ctx, usuarioID)
	if err != nil {
		return repo.Usuario{}, err
	}

	waUser, err := s.loadWebauthnUser(ctx, usuarioID)
	if err != nil {
		return repo.Usuario{}, err
	}

	assertion, err := protocol.ParseCredentialRequestResponseBody(body)
	if err != nil {
		return repo.Usuario{}, ErrDesafioInvalido
	}

	credential, err := s.wa.ValidateLogin(waUser, *sessionData, assertion)
	if err != nil {
		return repo.Usuario{}, ErrDesafioInvalido
	}

	stored, err := s.repo.GetPasskeyByCredentialID(ctx, credential.ID)
	if err != nil {
		return repo.Usuario{}, ErrDesafioInvalido
	}
	if stored.UsuarioID != user.ID {
		return repo.Usuario{}, ErrDesafioInvalido
	}

	if err := s.repo.UpdatePasskeyCounter(ctx, stored.ID, credential.Authenticator.SignCount, credential.Authenticator.CloneWarning); err != nil {
		return repo.Usuario{}, err
	}

	return user, nil
}

type desafioEnvelope struct {
	Session *webauthn.SessionData `json:"session"`
	UserID  string                `json:"user_id"`
}

func (s *PasskeyService) storeDesafio(ctx context.Context, prefix, sessionID string, data *webauthn.SessionData, usuarioID uuid.UUID) error {
	payload, err := json.Marshal(desafioEnvelope{Session: data, UserID: usuarioID.String()})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, prefix+sessionID, payload, passkeyDesafioTTL).Err()
}

func (s *PasskeyService) consumeDesafio(ctx context.Context, prefix, sessionID string) (*webauthn.SessionData, uuid.UUID, error) {
	key := prefix + sessionID
	raw, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, uuid.Nil, ErrDesafioInvalido
		}
		return nil, uuid.Nil, err
	}
	_ = s.redis.Del(ctx, key)

	var envelope desafioEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, uuid.Nil, ErrDesafioInvalido
	}
	usuarioID, err := uuid.Parse(envelope.UserID)
	if err != nil {
		return nil, uuid.Nil, ErrDesafioInvalido
	}
	return envelope.Session, usuarioID, nil
}

func (s *PasskeyService) loadWebauthnUser(ctx context.Context, usuarioID uuid.UUID) (*webauthnUser, error) {
	user, err := s.repo.GetUsuarioByID(ctx, usuarioID)
	if err != nil {
		return nil, err
	}

	passkeys, err := s.repo.ListPasskeysByUsuario(ctx, usuarioID)
	if err != nil {
		return nil, err
	}

	credentials := make([]webauthn.Credential, 0, len(passkeys))
	for _, pk := range passkeys {
		cred := webauthn.Credential{
			ID:        append([]byte(nil), pk.CredentialID...),
			PublicKey: append([]byte(nil), pk.PublicKey...),
			Transport: toAuthenticatorTransports(pk.Transports),
		}
		cred.Authenticator.SignCount = pk.SignCount
		cred.Authenticator.CloneWarning = pk.Cloned
		if len(pk.AAGUID) > 0 {
			cred.Authenticator.AAGUID = append([]byte(nil), pk.AAGUID...)
		}
		credentials = append(credentials, cred)
	}

	return &webauthnUser{
		id:          user.ID,
		name:        user.Username,
		displayName: user.Nome,
		credentials: credentials,
	}, nil
}

type webauthnUser struct {
	id          uuid.UUID
	name        string
	displayName string
	credentials []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte {
	id := make([]byte, 16)
	copy(id, u.id[:])
	return id
}

func (u *webauthnUser) WebAuthnName() string {
	return u.name
}

func (u *webauthnUser) WebAuthnDisplayName() string {
	return u.displayName
}

func (u *webauthnUser) WebAuthnIcon() string {
	return ""
}

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func toAuthenticatorTransports(values []string) []protocol.AuthenticatorTransport {
	if len(values) == 0 {
		return nil
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(values))
	for _, value := range values {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "usb":
			transports = append(transports, protocol.USB)
		case "nfc":
			transports = append(transports, protocol.NFC)
		case "ble":
			transports = append(transports, protocol.BLE)
		case "internal":
			transports = append(transports, protocol.Internal)
		case "smart-card":
			transports = append(transports, protocol.SmartCard)
		case "hybrid", "cable":
			transports = append(transports, protocol.Hybrid)
		default:
			transports = append(transports, protocol.AuthenticatorTransport(value))
		}
	}
	return transports
}
