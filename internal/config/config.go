package config

import (
	"errors"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port             int
	DBDSN            string
	RedisURL         string
	SessionTTL       time.Duration
	SweepInterval    time.Duration
	DevCookies       bool
	AllowOrigins     []string
	RateLimitPublic  RateLimitConfig
	RateLimitAuth    RateLimitConfig
	Agenda           AgendaConfig
	SMTP             SMTPConfig
	Storage          StorageConfig
	Admin            AdminConfig
	WebAuthnRPID     string
	WebAuthnRPOrigin string
	WebAuthnRPName   string
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// AgendaConfig define os horários publicados de coleta e a capacidade por horário.
type AgendaConfig struct {
	Horarios   []int
	Capacidade int
}

// SMTPConfig descreve o relay de e-mail do formulário de contato.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// StorageConfig descreve o espelho opcional de imagens em storage compatível com S3.
type StorageConfig struct {
	Provider    string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

// AdminConfig descreve o usuário administrador semeado no primeiro boot.
type AdminConfig struct {
	Username  string
	Nome      string
	Email     string
	SenhaHash string
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	// 1800 segundos no sistema original.
	sessionTTL, err := parseDurationEnv("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	if sessionTTL < time.Minute {
		return nil, errors.New("SESSION_TTL deve ser de pelo menos 1m")
	}
	cfg.SessionTTL = sessionTTL

	sweep, err := parseDurationEnv("SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.SweepInterval = sweep

	// Em desenvolvimento local (sem TLS) o cookie perde o atributo Secure.
	cfg.DevCookies = strings.EqualFold(getEnv("DEV_COOKIES", "false"), "true")

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	horarios, err := parseHorarios(getEnv("AGENDA_HORARIOS", "07,08,09,10,11,13,14,15,16"))
	if err != nil {
		return nil, err
	}
	cfg.Agenda.Horarios = horarios

	capacidade, err := strconv.Atoi(getEnv("AGENDA_CAPACIDADE", "4"))
	if err != nil || capacidade <= 0 {
		return nil, errors.New("AGENDA_CAPACIDADE inválida")
	}
	cfg.Agenda.Capacidade = capacidade

	cfg.SMTP.Host = strings.TrimSpace(getEnv("SMTP_HOST", ""))
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil || smtpPort <= 0 {
		return nil, errors.New("SMTP_PORT inválida")
	}
	cfg.SMTP.Port = smtpPort
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", "")
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", "")
	cfg.SMTP.From = getEnv("SMTP_FROM", "")
	if cfg.SMTP.Host != "" && cfg.SMTP.From == "" {
		return nil, errors.New("SMTP_FROM obrigatório quando SMTP_HOST está definido")
	}

	cfg.Storage.Provider = strings.TrimSpace(getEnv("STORAGE_PROVIDER", ""))
	cfg.Storage.S3Endpoint = getEnv("STORAGE_S3_ENDPOINT", "")
	cfg.Storage.S3Region = getEnv("STORAGE_S3_REGION", "auto")
	cfg.Storage.S3Bucket = getEnv("STORAGE_S3_BUCKET", "")
	cfg.Storage.S3AccessKey = getEnv("STORAGE_S3_ACCESS_KEY", "")
	cfg.Storage.S3SecretKey = getEnv("STORAGE_S3_SECRET_KEY", "")
	cfg.Storage.S3PublicURL = getEnv("STORAGE_S3_PUBLIC_URL", "")

	cfg.Admin.Username = strings.TrimSpace(getEnv("ADMIN_USERNAME", ""))
	cfg.Admin.Nome = strings.TrimSpace(getEnv("ADMIN_NOME", "Administrador"))
	cfg.Admin.Email = strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))
	cfg.Admin.SenhaHash = strings.TrimSpace(getEnv("ADMIN_SENHA_HASH", ""))
	if cfg.Admin.Username != "" && cfg.Admin.SenhaHash == "" {
		return nil, errors.New("ADMIN_SENHA_HASH obrigatório quando ADMIN_USERNAME está definido (use cmd/hashpass)")
	}

	cfg.WebAuthnRPID = strings.TrimSpace(getEnv("WEBAUTHN_RP_ID", "localhost"))
	if cfg.WebAuthnRPID == "" {
		cfg.WebAuthnRPID = "localhost"
	}
	cfg.WebAuthnRPOrigin = strings.TrimSpace(getEnv("WEBAUTHN_RP_ORIGIN", "http://localhost:5173"))
	if cfg.WebAuthnRPOrigin == "" {
		cfg.WebAuthnRPOrigin = "http://localhost:5173"
	}
	cfg.WebAuthnRPName = strings.TrimSpace(getEnv("WEBAUTHN_RP_NAME", "HemoCZ"))
	if cfg.WebAuthnRPName == "" {
		cfg.WebAuthnRPName = "HemoCZ"
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}

func parseHorarios(raw string) ([]int, error) {
	seen := make(map[int]struct{})
	var horarios []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hora, err := strconv.Atoi(part)
		if err != nil || hora < 0 || hora > 23 {
			return nil, errors.New("AGENDA_HORARIOS inválido: " + part)
		}
		if _, ok := seen[hora]; ok {
			continue
		}
		seen[hora] = struct{}{}
		horarios = append(horarios, hora)
	}
	if len(horarios) == 0 {
		return nil, errors.New("AGENDA_HORARIOS vazio")
	}
	sort.Ints(horarios)
	return horarios, nil
}
