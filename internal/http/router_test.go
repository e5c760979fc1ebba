package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hemocz/hemonucleo/internal/agenda"
	"github.com/hemocz/hemonucleo/internal/auth"
	"github.com/hemocz/hemonucleo/internal/config"
	"github.com/hemocz/hemonucleo/internal/contato"
	httpmiddleware "github.com/hemocz/hemonucleo/internal/http/middleware"
	"github.com/hemocz/hemonucleo/internal/repo"
	"github.com/hemocz/hemonucleo/internal/service"
)

type fakeSessions struct {
	ttl      time.Duration
	token    string
	username string
	revoked  []string
}

func (f *fakeSessions) Login(_ context.Context, username, senha string, _ auth.Dispositivo) (*service.LoginResult, error) {
	if username != f.username || senha != "senha-forte-123" {
		return nil, service.ErrCredenciaisInvalidas
	}
	return &service.LoginResult{
		Token:  f.token,
		TTL:    f.ttl,
		Perfil: service.Perfil{Username: f.username, Nome: "Maria Souza"},
	}, nil
}

func (f *fakeSessions) LoginUsuario(_ context.Context, user repo.Usuario, _ auth.Dispositivo) (*service.LoginResult, error) {
	return &service.LoginResult{
		Token:  f.token,
		TTL:    f.ttl,
		Perfil: service.Perfil{Username: user.Username, Nome: user.Nome},
	}, nil
}

func (f *fakeSessions) Validate(_ context.Context, token string, _ *auth.Dispositivo) (auth.TokenStatus, error) {
	if token == f.token {
		return auth.TokenValido, nil
	}
	return auth.TokenNaoEncontrado, nil
}

func (f *fakeSessions) UsernameOf(_ context.Context, token string) (string, error) {
	if token != f.token {
		return "", repo.ErrNotFound
	}
	return f.username, nil
}

func (f *fakeSessions) Revoke(_ context.Context, token string) error {
	f.revoked = append(f.revoked, token)
	return nil
}

func (f *fakeSessions) GetUserInfo(ctx context.Context, token string) (*service.Perfil, error) {
	if token != f.token {
		return nil, service.ErrNaoAutorizado
	}
	return &service.Perfil{Username: f.username, Nome: "Maria Souza"}, nil
}

func (f *fakeSessions) PerfilDe(_ context.Context, username string) (*service.Perfil, error) {
	if username != f.username {
		return nil, service.ErrNaoAutorizado
	}
	return &service.Perfil{Username: f.username, Nome: "Maria Souza"}, nil
}

func (f *fakeSessions) TTL() time.Duration { return f.ttl }

type stubAgendaRepo struct {
	itens     []agenda.Agendamento
	createErr error
}

func (s *stubAgendaRepo) Capacidade() int { return 4 }

func (s *stubAgendaRepo) Create(_ context.Context, ag *agenda.Agendamento) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.itens = append(s.itens, *ag)
	return nil
}

func (s *stubAgendaRepo) Count(_ context.Context, slot time.Time) (int, error) {
	slot = agenda.SlotDe(slot)
	total := 0
	for _, ag := range s.itens {
		if ag.Status != agenda.StatusCancelado && !ag.DataHora.Before(slot) && ag.DataHora.Before(slot.Add(time.Hour)) {
			total++
		}
	}
	return total, nil
}

func (s *stubAgendaRepo) List(_ context.Context) ([]agenda.Agendamento, error) {
	return s.itens, nil
}

func (s *stubAgendaRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	for i := range s.itens {
		if s.itens[i].ID == id {
			s.itens[i].Status = status
			return nil
		}
	}
	return agenda.ErrNotFound
}

func (s *stubAgendaRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i := range s.itens {
		if s.itens[i].ID == id {
			s.itens = append(s.itens[:i], s.itens[i+1:]...)
			return nil
		}
	}
	return agenda.ErrNotFound
}

type stubContatoRepo struct {
	mensagens []contato.Mensagem
}

func (s *stubContatoRepo) Insert(_ context.Context, m contato.Mensagem) error {
	s.mensagens = append(s.mensagens, m)
	return nil
}

func (s *stubContatoRepo) List(_ context.Context) ([]contato.Mensagem, error) {
	return s.mensagens, nil
}

func (s *stubContatoRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i := range s.mensagens {
		if s.mensagens[i].ID == id {
			s.mensagens = append(s.mensagens[:i], s.mensagens[i+1:]...)
			return nil
		}
	}
	return contato.ErrNotFound
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorBody      `json:"error"`
}

func newTestHandler(agendaRepo *stubAgendaRepo) (*Handler, http.Handler) {
	sessions := &fakeSessions{ttl: 30 * time.Minute, token: "token-valido", username: "maria"}

	h := &Handler{
		cfg: &config.Config{
			Agenda: config.AgendaConfig{
				Horarios:   []int{7, 8, 9, 10, 11, 13, 14, 15, 16},
				Capacidade: 4,
			},
		},
		sessions:      sessions,
		agenda:        agenda.NewService(agendaRepo, []int{7, 8, 9, 10, 11, 13, 14, 15, 16}),
		contato:       contato.NewService(&stubContatoRepo{}, nil),
		publicLimiter: httpmiddleware.NewRateLimiter(100, 100),
		authLimiter:   httpmiddleware.NewRateLimiter(100, 100),
		devCookies:    true,
	}
	return h, h.routes()
}

func agendamentoBody(email string, hora int) []byte {
	amanha := time.Now().UTC().AddDate(0, 0, 1)
	dataHora := time.Date(amanha.Year(), amanha.Month(), amanha.Day(), hora, 0, 0, 0, time.UTC)
	payload := fmt.Sprintf(`{"nome":"João","tipoSanguineo":"O+","telefone":"85999990000","email":%q,"dataHora":%q}`,
		email, dataHora.Format(time.RFC3339))
	return []byte(payload)
}

func TestLoginDefineCookieDeSessao(t *testing.T) {
	_, router := newTestHandler(&stubAgendaRepo{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		bytes.NewReader([]byte(`{"username":"maria","password":"senha-forte-123"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, corpo: %s", rec.Code, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	var cookie *http.Cookie
	for _, c := range cookies {
		if c.Name == httpmiddleware.SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("cookie de sessão ausente")
	}
	if cookie.Value != "token-valido" {
		t.Fatalf("valor do cookie = %q", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Fatal("cookie deve ser HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("SameSite = %v, esperava Strict", cookie.SameSite)
	}
	if cookie.MaxAge != 1800 {
		t.Fatalf("MaxAge = %d, esperava 1800", cookie.MaxAge)
	}
	if cookie.Path != "/" {
		t.Fatalf("Path = %q", cookie.Path)
	}
}

func TestLoginCredenciaisInvalidas(t *testing.T) {
	_, router := newTestHandler(&stubAgendaRepo{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		bytes.NewReader([]byte(`{"username":"maria","password":"errada"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, esperava 401", rec.Code)
	}

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error == nil || env.Error.Code != "AUTH" {
		t.Fatalf("erro = %+v", env.Error)
	}
}

func TestLogoutRevogaELimpaCookie(t *testing.T) {
	h, router := newTestHandler(&stubAgendaRepo{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: httpmiddleware.SessionCookieName, Value: "token-valido"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	sessions := h.sessions.(*fakeSessions)
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "token-valido" {
		t.Fatalf("revogações = %v", sessions.revoked)
	}

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == httpmiddleware.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("cookie não foi limpo")
	}
}

func TestRotaProtegidaExigeSessao(t *testing.T) {
	_, router := newTestHandler(&stubAgendaRepo{})

	req := httptest.NewRequest(http.MethodGet, "/agendamentos", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("sem cookie: status = %d, esperava 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/agendamentos", nil)
	req.AddCookie(&http.Cookie{Name: httpmiddleware.SessionCookieName, Value: "token-morto"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token morto: status = %d, esperava 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/agendamentos", nil)
	req.AddCookie(&http.Cookie{Name: httpmiddleware.SessionCookieName, Value: "token-valido"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("token válido: status = %d, corpo: %s", rec.Code, rec.Body.String())
	}
}

func TestAgendamentoCreatePublico(t *testing.T) {
	repo := &stubAgendaRepo{}
	_, router := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodPost, "/agendamentos", bytes.NewReader(agendamentoBody("doador@example.com", 9)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, corpo: %s", rec.Code, rec.Body.String())
	}
	if len(repo.itens) != 1 {
		t.Fatalf("itens = %d", len(repo.itens))
	}
}

func TestAgendamentoCreateConflitos(t *testing.T) {
	casos := []struct {
		err    error
		status int
		code   string
	}{
		{agenda.ErrAgendamentoPendente, http.StatusConflict, "AGENDAMENTO_PENDENTE"},
		{agenda.ErrHorarioLotado, http.StatusConflict, "HORARIO_LOTADO"},
	}

	for _, caso := range casos {
		_, router := newTestHandler(&stubAgendaRepo{createErr: caso.err})

		req := httptest.NewRequest(http.MethodPost, "/agendamentos", bytes.NewReader(agendamentoBody("doador@example.com", 9)))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != caso.status {
			t.Fatalf("%s: status = %d, esperava %d", caso.code, rec.Code, caso.status)
		}
		var env envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Error == nil || env.Error.Code != caso.code {
			t.Fatalf("erro = %+v, esperava código %s", env.Error, caso.code)
		}
	}
}

func TestAgendamentoCreateValidacao(t *testing.T) {
	_, router := newTestHandler(&stubAgendaRepo{})

	body := []byte(`{"nome":"João","tipoSanguineo":"Z+","telefone":"85999990000","email":"a@b.com","dataHora":"2099-01-01T09:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/agendamentos", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, esperava 400", rec.Code)
	}
}

func TestAgendamentoVagasPublico(t *testing.T) {
	repo := &stubAgendaRepo{}
	_, router := newTestHandler(repo)

	create := httptest.NewRequest(http.MethodPost, "/agendamentos", bytes.NewReader(agendamentoBody("doador@example.com", 9)))
	router.ServeHTTP(httptest.NewRecorder(), create)

	amanha := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	req := httptest.NewRequest(http.MethodGet, "/agendamentos/vagas?data="+amanha, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, corpo: %s", rec.Code, rec.Body.String())
	}

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var payload struct {
		Data     string               `json:"data"`
		Horarios []agenda.VagaHorario `json:"horarios"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.Data != amanha {
		t.Fatalf("data = %q, esperava %q", payload.Data, amanha)
	}
	if len(payload.Horarios) != 9 {
		t.Fatalf("horários = %d, esperava 9", len(payload.Horarios))
	}
	for _, vaga := range payload.Horarios {
		if vaga.Horario == 9 && vaga.Vagas != 3 {
			t.Fatalf("horário 9: %+v", vaga)
		}
	}
}

func TestUserInfoSemEComToken(t *testing.T) {
	_, router := newTestHandler(&stubAgendaRepo{})

	// A rota fica atrás do gate: sem sessão, o 401 é o mesmo de qualquer
	// rota protegida.
	req := httptest.NewRequest(http.MethodGet, "/auth/user-info", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("sem token: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/user-info", nil)
	req.AddCookie(&http.Cookie{Name: httpmiddleware.SessionCookieName, Value: "token-morto"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token morto: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/user-info", nil)
	req.AddCookie(&http.Cookie{Name: httpmiddleware.SessionCookieName, Value: "token-valido"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("com token: status = %d", rec.Code)
	}

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var perfil service.Perfil
	if err := json.Unmarshal(env.Data, &perfil); err != nil {
		t.Fatalf("decode perfil: %v", err)
	}
	if perfil.Username != "maria" {
		t.Fatalf("username = %q", perfil.Username)
	}
}

func TestContatoCreatePublico(t *testing.T) {
	_, router := newTestHandler(&stubAgendaRepo{})

	body := []byte(`{"nome":"Ana","email":"ana@example.com","assunto":"Dúvida","mensagem":"Posso doar amanhã?"}`)
	req := httptest.NewRequest(http.MethodPost, "/contato", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, corpo: %s", rec.Code, rec.Body.String())
	}
}
