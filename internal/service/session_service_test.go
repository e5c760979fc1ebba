package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hemocz/hemonucleo/internal/auth"
	"github.com/hemocz/hemonucleo/internal/repo"
)

type stubSessionRepo struct {
	usuarios          map[string]repo.Usuario
	sessoes           map[string]repo.Sessao
	getSessaoChamadas int
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{
		usuarios: make(map[string]repo.Usuario),
		sessoes:  make(map[string]repo.Sessao),
	}
}

func (s *stubSessionRepo) GetUsuarioByUsername(_ context.Context, username string) (repo.Usuario, error) {
	user, ok := s.usuarios[username]
	if !ok {
		return repo.Usuario{}, repo.ErrNotFound
	}
	return user, nil
}

func (s *stubSessionRepo) InsertSessao(_ context.Context, arg repo.InsertSessaoParams) (repo.Sessao, error) {
	sessao := repo.Sessao{
		ID:        arg.ID,
		Username:  arg.Username,
		TokenHash: arg.TokenHash,
		IP:        arg.IP,
		UserAgent: arg.UserAgent,
		EmitidoEm: arg.EmitidoEm,
		ExpiraEm:  arg.ExpiraEm,
	}
	s.sessoes[arg.TokenHash] = sessao
	return sessao, nil
}

func (s *stubSessionRepo) GetSessaoByHash(_ context.Context, tokenHash string) (repo.Sessao, error) {
	s.getSessaoChamadas++
	sessao, ok := s.sessoes[tokenHash]
	if !ok {
		return repo.Sessao{}, repo.ErrNotFound
	}
	return sessao, nil
}

func (s *stubSessionRepo) DeleteSessaoByHash(_ context.Context, tokenHash string) error {
	if _, ok := s.sessoes[tokenHash]; !ok {
		return repo.ErrNotFound
	}
	delete(s.sessoes, tokenHash)
	return nil
}

func (s *stubSessionRepo) DeleteSessoesExpiradas(_ context.Context, ref time.Time) ([]string, error) {
	var hashes []string
	for hash, sessao := range s.sessoes {
		if !sessao.ExpiraEm.After(ref) {
			delete(s.sessoes, hash)
			hashes = append(hashes, hash)
		}
	}
	return hashes, nil
}

type fakeRedis struct {
	valores map[string]string
	delErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{valores: make(map[string]string)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.valores[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	value, ok := f.valores[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.delErr != nil {
		return redis.NewIntResult(0, f.delErr)
	}
	var removed int64
	for _, key := range keys {
		if _, ok := f.valores[key]; ok {
			delete(f.valores, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func newTestSessionService(t *testing.T) (*SessionService, *stubSessionRepo, *fakeRedis) {
	t.Helper()

	repoStub := newStubSessionRepo()
	rdb := newFakeRedis()

	hash, err := auth.Hash("senha-forte-123")
	if err != nil {
		t.Fatalf("hash da senha: %v", err)
	}
	repoStub.usuarios["maria"] = repo.Usuario{
		Username:  "maria",
		Nome:      "Maria Souza",
		Email:     "maria@example.com",
		SenhaHash: hash,
	}

	svc := &SessionService{repo: repoStub, redis: rdb, ttl: 30 * time.Minute, sweepInterval: time.Minute}
	return svc, repoStub, rdb
}

func TestLoginEmiteSessaoValida(t *testing.T) {
	svc, repoStub, _ := newTestSessionService(t)
	ctx := context.Background()
	device := auth.Dispositivo{IP: "203.0.113.7", UserAgent: "teste/1.0"}

	result, err := svc.Login(ctx, "maria", "senha-forte-123", device)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Perfil.Username != "maria" || result.Perfil.Nome != "Maria Souza" {
		t.Fatalf("perfil inesperado: %+v", result.Perfil)
	}
	if result.TTL != 30*time.Minute {
		t.Fatalf("ttl inesperado: %v", result.TTL)
	}

	status, err := svc.Validate(ctx, result.Token, &device)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if status != auth.TokenValido {
		t.Fatalf("status = %q, esperava %q", status, auth.TokenValido)
	}

	username, err := svc.UsernameOf(ctx, result.Token)
	if err != nil {
		t.Fatalf("username: %v", err)
	}
	if username != "maria" {
		t.Fatalf("username = %q", username)
	}

	hash := auth.HashSessionToken(result.Token)
	sessao, ok := repoStub.sessoes[hash]
	if !ok {
		t.Fatal("sessão não persistida")
	}
	if sessao.IP != device.IP || sessao.UserAgent != device.UserAgent {
		t.Fatalf("dispositivo não registrado: %+v", sessao)
	}
}

func TestLoginFalhaComMesmoErro(t *testing.T) {
	svc, _, _ := newTestSessionService(t)
	ctx := context.Background()
	device := auth.Dispositivo{IP: "203.0.113.7", UserAgent: "teste/1.0"}

	_, errSenha := svc.Login(ctx, "maria", "senha-errada", device)
	_, errUsuario := svc.Login(ctx, "ninguem", "senha-forte-123", device)

	if !errors.Is(errSenha, ErrCredenciaisInvalidas) {
		t.Fatalf("senha errada: %v", errSenha)
	}
	if !errors.Is(errUsuario, ErrCredenciaisInvalidas) {
		t.Fatalf("usuário desconhecido: %v", errUsuario)
	}
	if errSenha.Error() != errUsuario.Error() {
		t.Fatalf("erros divergem: %q vs %q", errSenha, errUsuario)
	}
}

func TestValidateTokenMalformado(t *testing.T) {
	svc, _, _ := newTestSessionService(t)

	for _, token := range []string{"", "abc", "não-base64!!", "QQ"} {
		status, err := svc.Validate(context.Background(), token, nil)
		if err != nil {
			t.Fatalf("validate %q: %v", token, err)
		}
		if status != auth.TokenInvalido {
			t.Fatalf("token %q: status = %q", token, status)
		}
	}
}

func TestValidateTokenExpiradoRemoveRegistro(t *testing.T) {
	svc, repoStub, rdb := newTestSessionService(t)
	ctx := context.Background()
	device := auth.Dispositivo{IP: "203.0.113.7", UserAgent: "teste/1.0"}

	result, err := svc.Login(ctx, "maria", "senha-forte-123", device)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	hash := auth.HashSessionToken(result.Token)
	sessao := repoStub.sessoes[hash]
	sessao.ExpiraEm = time.Now().UTC().Add(-time.Minute)
	repoStub.sessoes[hash] = sessao
	delete(rdb.valores, auth.SessionRedisKey(hash))

	status, err := svc.Validate(ctx, result.Token, &device)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if status != auth.TokenExpirado {
		t.Fatalf("status = %q, esperava %q", status, auth.TokenExpirado)
	}
	if _, ok := repoStub.sessoes[hash]; ok {
		t.Fatal("registro expirado não foi removido")
	}

	status, err = svc.Validate(ctx, result.Token, &device)
	if err != nil {
		t.Fatalf("validate pós-expiração: %v", err)
	}
	if status != auth.TokenNaoEncontrado {
		t.Fatalf("status = %q, esperava %q", status, auth.TokenNaoEncontrado)
	}
}

func TestRevokeEncerraSessao(t *testing.T) {
	svc, repoStub, rdb := newTestSessionService(t)
	ctx := context.Background()
	device := auth.Dispositivo{IP: "203.0.113.7", UserAgent: "teste/1.0"}

	result, err := svc.Login(ctx, "maria", "senha-forte-123", device)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Revoke(ctx, result.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	hash := auth.HashSessionToken(result.Token)
	if _, ok := repoStub.sessoes[hash]; ok {
		t.Fatal("sessão continua no banco após revogação")
	}
	if _, ok := rdb.valores[auth.SessionRedisKey(hash)]; ok {
		t.Fatal("flag continua no Redis após revogação")
	}

	status, err := svc.Validate(ctx, result.Token, &device)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if status != auth.TokenNaoEncontrado {
		t.Fatalf("status = %q, esperava %q", status, auth.TokenNaoEncontrado)
	}

	// Revogar de novo (ou token que nunca existiu) não é erro.
	if err := svc.Revoke(ctx, result.Token); err != nil {
		t.Fatalf("revoke repetido: %v", err)
	}
}

func TestRevokeComRedisIndisponivelPreservaRegistro(t *testing.T) {
	svc, repoStub, rdb := newTestSessionService(t)
	ctx := context.Background()
	device := auth.Dispositivo{IP: "203.0.113.7", UserAgent: "teste/1.0"}

	result, err := svc.Login(ctx, "maria", "senha-forte-123", device)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rdb.delErr = errors.New("redis indisponível")
	if err := svc.Revoke(ctx, result.Token); err == nil {
		t.Fatal("revoke deveria falhar com Redis fora do ar")
	}

	// O flag cai antes da linha: com o Del falhando, a linha fica intacta e
	// nunca existe flag ativo apontando para sessão já removida.
	hash := auth.HashSessionToken(result.Token)
	if _, ok := repoStub.sessoes[hash]; !ok {
		t.Fatal("linha removida antes do flag; janela de aceitação pós-revogação")
	}

	rdb.delErr = nil
	if err := svc.Revoke(ctx, result.Token); err != nil {
		t.Fatalf("revoke após Redis voltar: %v", err)
	}
	status, err := svc.Validate(ctx, result.Token, &device)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if status != auth.TokenNaoEncontrado {
		t.Fatalf("status = %q, esperava %q", status, auth.TokenNaoEncontrado)
	}
}

func TestValidateDivergenciaNoCaminhoRapido(t *testing.T) {
	svc, repoStub, _ := newTestSessionService(t)
	ctx := context.Background()
	device := auth.Dispositivo{IP: "203.0.113.7", UserAgent: "teste/1.0"}

	result, err := svc.Login(ctx, "maria", "senha-forte-123", device)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = original }()

	antes := repoStub.getSessaoChamadas
	outro := auth.Dispositivo{IP: "198.51.100.9", UserAgent: "outro/2.0"}
	status, err := svc.Validate(ctx, result.Token, &outro)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if status != auth.TokenValido {
		t.Fatalf("status = %q, esperava %q", status, auth.TokenValido)
	}
	if repoStub.getSessaoChamadas != antes {
		t.Fatal("caminho rápido foi ao banco")
	}

	saida := buf.String()
	if !strings.Contains(saida, "sessao_dispositivo_divergente") {
		t.Fatalf("divergência não registrada no caminho rápido: %s", saida)
	}
	if !strings.Contains(saida, `"username":"maria"`) {
		t.Fatalf("log sem o titular da sessão: %s", saida)
	}
}

func TestGetUserInfo(t *testing.T) {
	svc, _, _ := newTestSessionService(t)
	ctx := context.Background()
	device := auth.Dispositivo{IP: "203.0.113.7", UserAgent: "teste/1.0"}

	result, err := svc.Login(ctx, "maria", "senha-forte-123", device)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	perfil, err := svc.GetUserInfo(ctx, result.Token)
	if err != nil {
		t.Fatalf("user info: %v", err)
	}
	if perfil.Username != "maria" || perfil.Nome != "Maria Souza" {
		t.Fatalf("perfil inesperado: %+v", perfil)
	}

	if _, err := svc.GetUserInfo(ctx, "token-malformado"); !errors.Is(err, ErrNaoAutorizado) {
		t.Fatalf("token malformado: %v", err)
	}
}

func TestSweepOnce(t *testing.T) {
	svc, repoStub, rdb := newTestSessionService(t)
	ctx := context.Background()
	device := auth.Dispositivo{IP: "203.0.113.7", UserAgent: "teste/1.0"}

	vigente, err := svc.Login(ctx, "maria", "senha-forte-123", device)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	vencida, err := svc.Login(ctx, "maria", "senha-forte-123", device)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	hashVencida := auth.HashSessionToken(vencida.Token)
	sessao := repoStub.sessoes[hashVencida]
	sessao.ExpiraEm = time.Now().UTC().Add(-time.Hour)
	repoStub.sessoes[hashVencida] = sessao

	removed, err := svc.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removidas = %d, esperava 1", removed)
	}
	if _, ok := repoStub.sessoes[hashVencida]; ok {
		t.Fatal("sessão vencida sobreviveu à varredura")
	}
	if _, ok := rdb.valores[auth.SessionRedisKey(hashVencida)]; ok {
		t.Fatal("flag da sessão vencida sobreviveu no Redis")
	}

	if _, ok := repoStub.sessoes[auth.HashSessionToken(vigente.Token)]; !ok {
		t.Fatal("sessão vigente foi removida pela varredura")
	}
}
