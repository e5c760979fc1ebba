package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/hemocz/hemonucleo/internal/auth"
	"github.com/hemocz/hemonucleo/internal/repo"
	"github.com/hemocz/hemonucleo/internal/util"
)

var (
	// ErrCredenciaisInvalidas indica falha na autenticação. Usuário inexistente
	// e senha errada produzem exatamente este mesmo erro.
	ErrCredenciaisInvalidas = errors.New("usuário ou senha inválidos")
	// ErrNaoAutorizado indica token ausente, malformado, expirado ou revogado.
	ErrNaoAutorizado = errors.New("não autorizado")
)

// flagSessao é o valor do flag ativo no Redis. Carrega o dispositivo
// capturado no login para que o caminho rápido também compare fingerprint.
type flagSessao struct {
	Username  string `json:"username"`
	IP        string `json:"ip"`
	UserAgent string `json:"ua"`
}

type sessionRepository interface {
	GetUsuarioByUsername(ctx context.Context, username string) (repo.Usuario, error)
	InsertSessao(ctx context.Context, arg repo.InsertSessaoParams) (repo.Sessao, error)
	GetSessaoByHash(ctx context.Context, tokenHash string) (repo.Sessao, error)
	DeleteSessaoByHash(ctx context.Context, tokenHash string) error
	DeleteSessoesExpiradas(ctx context.Context, ref time.Time) ([]string, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// SessionService concentra autenticação por senha e o ciclo de vida dos
// tokens opacos de sessão: emissão, validação, revogação e varredura.
type SessionService struct {
	repo          sessionRepository
	redis         redisCommander
	ttl           time.Duration
	sweepInterval time.Duration

	once   sync.Once
	cancel context.CancelFunc
}

// NewSessionService cria novo serviço de sessões.
func NewSessionService(r *repo.Queries, redisClient *redis.Client, ttl, sweepInterval time.Duration) *SessionService {
	return &SessionService{repo: r, redis: redisClient, ttl: ttl, sweepInterval: sweepInterval}
}

// Perfil é o retrato público de um usuário autenticado.
type Perfil struct {
	Username string `json:"username"`
	Nome     string `json:"name"`
}

// LoginResult carrega o token cru (vai apenas para o cookie) e o perfil.
type LoginResult struct {
	Token  string
	TTL    time.Duration
	Perfil Perfil
}

// TTL devolve a duração configurada das sessões.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Login autentica por username e senha e emite uma sessão.
func (s *SessionService) Login(ctx context.Context, username, senha string, device auth.Dispositivo) (*LoginResult, error) {
	user, err := s.repo.GetUsuarioByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return nil, ErrCredenciaisInvalidas
		}
		return nil, err
	}

	ok, err := auth.Verify(senha, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificação de senha falhou")
		return nil, ErrCredenciaisInvalidas
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return nil, ErrCredenciaisInvalidas
	}

	return s.LoginUsuario(ctx, user, device)
}

// LoginUsuario emite uma sessão para usuário já autenticado por outro meio
// (por exemplo, passkey).
func (s *SessionService) LoginUsuario(ctx context.Context, user repo.Usuario, device auth.Dispositivo) (*LoginResult, error) {
	raw, hash, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	now := util.Now()
	_, err = s.repo.InsertSessao(ctx, repo.InsertSessaoParams{
		ID:        uuid.New(),
		Username:  user.Username,
		TokenHash: hash,
		IP:        device.IP,
		UserAgent: device.UserAgent,
		EmitidoEm: now,
		ExpiraEm:  now.Add(s.ttl),
	})
	if err != nil {
		return nil, err
	}

	if err := s.setFlag(ctx, hash, flagSessao{Username: user.Username, IP: device.IP, UserAgent: device.UserAgent}, s.ttl); err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:  raw,
		TTL:    s.ttl,
		Perfil: Perfil{Username: user.Username, Nome: user.Nome},
	}, nil
}

// Validate classifica o token. Tokens vencidos têm o registro removido na
// hora — a varredura periódica é só limpeza antecipada. A divergência entre o
// dispositivo atual e o capturado no login é registrada para telemetria, mas
// não rejeita a sessão.
func (s *SessionService) Validate(ctx context.Context, token string, device *auth.Dispositivo) (auth.TokenStatus, error) {
	if !auth.WellFormedToken(token) {
		return auth.TokenInvalido, nil
	}

	hash := auth.HashSessionToken(token)
	redisKey := auth.SessionRedisKey(hash)

	// Caminho rápido: flag ativo no Redis carrega o mesmo TTL da sessão.
	if payload, err := s.redis.Get(ctx, redisKey).Result(); err == nil {
		var flag flagSessao
		if json.Unmarshal([]byte(payload), &flag) == nil && flag.Username != "" {
			s.logDispositivoDivergente(flag.Username, device, flag.IP, flag.UserAgent)
			return auth.TokenValido, nil
		}
		// Flag ilegível: segue para o banco, que repovoa o valor.
	}

	sessao, err := s.repo.GetSessaoByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return auth.TokenNaoEncontrado, nil
		}
		return "", err
	}

	now := util.Now()
	if !sessao.ExpiraEm.After(now) {
		if err := s.repo.DeleteSessaoByHash(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
			return "", err
		}
		_ = s.redis.Del(ctx, redisKey).Err()
		return auth.TokenExpirado, nil
	}

	s.logDispositivoDivergente(sessao.Username, device, sessao.IP, sessao.UserAgent)

	// Repovoa o flag perdido (ex.: Redis reiniciado); melhor esforço.
	_ = s.setFlag(ctx, hash, flagSessao{Username: sessao.Username, IP: sessao.IP, UserAgent: sessao.UserAgent}, time.Until(sessao.ExpiraEm))

	return auth.TokenValido, nil
}

func (s *SessionService) setFlag(ctx context.Context, hash string, flag flagSessao, ttl time.Duration) error {
	payload, err := json.Marshal(flag)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, auth.SessionRedisKey(hash), string(payload), ttl).Err()
}

// logDispositivoDivergente registra, sem rejeitar, a diferença entre o
// dispositivo atual e o capturado no login.
func (s *SessionService) logDispositivoDivergente(username string, atual *auth.Dispositivo, ipLogin, uaLogin string) {
	if atual == nil || (atual.IP == ipLogin && atual.UserAgent == uaLogin) {
		return
	}
	log.Warn().
		Str("username", username).
		Str("ip_login", ipLogin).
		Str("ip_atual", atual.IP).
		Msg("sessao_dispositivo_divergente")
}

// UsernameOf resolve o titular do token sem reavaliar expiração. Quem chama
// decide antes, via Validate, se o resultado merece confiança.
func (s *SessionService) UsernameOf(ctx context.Context, token string) (string, error) {
	if !auth.WellFormedToken(token) {
		return "", repo.ErrNotFound
	}

	sessao, err := s.repo.GetSessaoByHash(ctx, auth.HashSessionToken(token))
	if err != nil {
		return "", err
	}
	return sessao.Username, nil
}

// Revoke encerra a sessão imediatamente (logout). O flag no Redis cai
// primeiro: se a remoção da linha falhar depois, o caminho lento ainda
// enxerga a sessão, mas nunca fica um flag vivo apontando para linha morta.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if !auth.WellFormedToken(token) {
		return nil
	}

	hash := auth.HashSessionToken(token)
	if err := s.redis.Del(ctx, auth.SessionRedisKey(hash)).Err(); err != nil && err != redis.Nil {
		return err
	}
	if err := s.repo.DeleteSessaoByHash(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	return nil
}

// GetUserInfo devolve o perfil do titular de um token válido.
func (s *SessionService) GetUserInfo(ctx context.Context, token string) (*Perfil, error) {
	status, err := s.Validate(ctx, token, nil)
	if err != nil {
		return nil, err
	}
	if status != auth.TokenValido {
		return nil, ErrNaoAutorizado
	}

	username, err := s.UsernameOf(ctx, token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNaoAutorizado
		}
		return nil, err
	}

	return s.PerfilDe(ctx, username)
}

// PerfilDe carrega o perfil público pelo username.
func (s *SessionService) PerfilDe(ctx context.Context, username string) (*Perfil, error) {
	user, err := s.repo.GetUsuarioByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNaoAutorizado
		}
		return nil, err
	}
	return &Perfil{Username: user.Username, Nome: user.Nome}, nil
}

// Start inicia a varredura periódica de sessões vencidas. Safe para chamar
// múltiplas vezes.
func (s *SessionService) Start(parent context.Context) {
	if s.sweepInterval <= 0 {
		return
	}
	s.once.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		go s.runLoop(ctx)
	})
}

// Stop encerra a varredura periódica.
func (s *SessionService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *SessionService) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.sweepInterval).Msg("sessoes: varredura iniciada")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sessoes: varredura encerrada")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				log.Error().Err(err).Msg("sessoes: varredura falhou")
			}
		}
	}
}

// SweepOnce remove em lote as sessões já vencidas e seus flags no Redis.
func (s *SessionService) SweepOnce(ctx context.Context) (int, error) {
	hashes, err := s.repo.DeleteSessoesExpiradas(ctx, util.Now())
	if err != nil {
		return 0, err
	}
	if len(hashes) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		keys = append(keys, auth.SessionRedisKey(hash))
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil && err != redis.Nil {
		log.Warn().Err(err).Msg("sessoes: limpeza de flags no Redis falhou")
	}

	log.Info().Int("removidas", len(hashes)).Msg("sessoes: varredura concluída")
	return len(hashes), nil
}
