package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hemocz/hemonucleo/internal/agenda"
	"github.com/hemocz/hemonucleo/internal/assistencia"
	"github.com/hemocz/hemonucleo/internal/auth"
	"github.com/hemocz/hemonucleo/internal/config"
	"github.com/hemocz/hemonucleo/internal/contato"
	httpmiddleware "github.com/hemocz/hemonucleo/internal/http/middleware"
	"github.com/hemocz/hemonucleo/internal/repo"
	"github.com/hemocz/hemonucleo/internal/service"
	"github.com/hemocz/hemonucleo/internal/storage"
)

// sessionAPI é a superfície do serviço de sessões usada pelos handlers.
type sessionAPI interface {
	Login(ctx context.Context, username, senha string, device auth.Dispositivo) (*service.LoginResult, error)
	LoginUsuario(ctx context.Context, user repo.Usuario, device auth.Dispositivo) (*service.LoginResult, error)
	Validate(ctx context.Context, token string, device *auth.Dispositivo) (auth.TokenStatus, error)
	UsernameOf(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
	GetUserInfo(ctx context.Context, token string) (*service.Perfil, error)
	PerfilDe(ctx context.Context, username string) (*service.Perfil, error)
	TTL() time.Duration
}

// Handler agrega os serviços atrás das rotas HTTP.
type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	queries       *repo.Queries
	sessions      sessionAPI
	passkeys      *service.PasskeyService
	agenda        *agenda.Service
	assistencia   *assistencia.Service
	contato       *contato.Service
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter monta os serviços e devolve o roteador configurado.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, sessions *service.SessionService) (http.Handler, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.WebAuthnRPName,
		RPID:          cfg.WebAuthnRPID,
		RPOrigins:     []string{cfg.WebAuthnRPOrigin},
	})
	if err != nil {
		return nil, fmt.Errorf("webauthn: %w", err)
	}

	var uploader storage.Uploader
	switch strings.ToLower(cfg.Storage.Provider) {
	case "", "none":
		uploader = storage.NoopUploader{}
	case "s3":
		s3Cfg := storage.S3Config{
			Endpoint:     cfg.Storage.S3Endpoint,
			Region:       cfg.Storage.S3Region,
			Bucket:       cfg.Storage.S3Bucket,
			AccessKey:    cfg.Storage.S3AccessKey,
			SecretKey:    cfg.Storage.S3SecretKey,
			PublicDomain: cfg.Storage.S3PublicURL,
		}
		uploader, err = storage.NewS3Uploader(s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("storage: provedor %s não suportado", cfg.Storage.Provider)
	}

	queries := repo.New(pool)

	agendaRepo := agenda.NewRepository(pool, cfg.Agenda.Capacidade)
	agendaService := agenda.NewService(agendaRepo, cfg.Agenda.Horarios)

	assistenciaRepo := assistencia.NewRepository(pool)
	assistenciaService := assistencia.NewService(assistenciaRepo, uploader)

	contatoRepo := contato.NewRepository(pool)
	var mailer contato.Mailer
	if smtp := contato.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From); smtp != nil {
		mailer = smtp
	}
	contatoService := contato.NewService(contatoRepo, mailer)

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		queries:       queries,
		sessions:      sessions,
		passkeys:      service.NewPasskeyService(queries, redisClient, wa),
		agenda:        agendaService,
		assistencia:   assistenciaService,
		contato:       contatoService,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		devCookies:    cfg.DevCookies,
	}

	return h.routes(), nil
}

func (h *Handler) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(h.cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Post("/auth/login", h.handleLogin)
		public.Post("/auth/logout", h.handleLogout)
		public.Post("/auth/passkey/login/start", h.handlePasskeyLoginStart)
		public.Post("/auth/passkey/login/finish", h.handlePasskeyLoginFinish)

		public.Post("/agendamentos", h.handleAgendamentoCreate)
		public.Get("/agendamentos/vagas", h.handleAgendamentoVagas)

		public.Get("/assistencia/anuncios", h.handleAnuncioList)
		public.Get("/assistencia/anuncios/{id}/imagem", h.handleAnuncioImagem)
		public.Get("/assistencia/campanhas", h.handleCampanhaList)
		public.Get("/assistencia/eventos", h.handleEventoList)

		public.Post("/contato", h.handleContatoCreate)
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(h.sessions))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.handleMe)
		private.Get("/auth/user-info", h.handleUserInfo)
		private.Post("/auth/passkey/registro/start", h.handlePasskeyRegisterStart)
		private.Post("/auth/passkey/registro/finish", h.handlePasskeyRegisterFinish)

		private.Get("/agendamentos", h.handleAgendamentoList)
		private.Put("/agendamentos/{id}/status", h.handleAgendamentoStatus)
		private.Delete("/agendamentos/{id}", h.handleAgendamentoDelete)

		private.Post("/assistencia/anuncios", h.handleAnuncioCreate)
		private.Delete("/assistencia/anuncios/{id}", h.handleAnuncioDelete)
		private.Post("/assistencia/campanhas", h.handleCampanhaCreate)
		private.Delete("/assistencia/campanhas/{id}", h.handleCampanhaDelete)
		private.Post("/assistencia/eventos", h.handleEventoCreate)
		private.Delete("/assistencia/eventos/{id}", h.handleEventoDelete)

		private.Get("/mensagens", h.handleMensagemList)
		private.Delete("/mensagens/{id}", h.handleMensagemDelete)
	})

	return r
}

// Health responde imediatamente; usado por probes de liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Ready verifica Postgres e Redis antes de aceitar tráfego.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "banco indisponível", nil)
		return
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "redis indisponível", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
