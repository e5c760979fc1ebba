package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hemocz/hemonucleo/internal/auth"
)

type fakeValidator struct {
	statuses map[string]auth.TokenStatus
	users    map[string]string
	devices  []auth.Dispositivo
}

func (f *fakeValidator) Validate(_ context.Context, token string, device *auth.Dispositivo) (auth.TokenStatus, error) {
	if device != nil {
		f.devices = append(f.devices, *device)
	}
	status, ok := f.statuses[token]
	if !ok {
		return auth.TokenNaoEncontrado, nil
	}
	return status, nil
}

func (f *fakeValidator) UsernameOf(_ context.Context, token string) (string, error) {
	return f.users[token], nil
}

func newGate(v SessionValidator) http.Handler {
	return Auth(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Username", GetUsername(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthSemToken(t *testing.T) {
	gate := newGate(&fakeValidator{})

	req := httptest.NewRequest(http.MethodGet, "/agendamentos", nil)
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, esperava 401", rec.Code)
	}
}

func TestAuthTokenRejeitado(t *testing.T) {
	v := &fakeValidator{statuses: map[string]auth.TokenStatus{
		"malformado": auth.TokenInvalido,
		"vencido":    auth.TokenExpirado,
		"revogado":   auth.TokenNaoEncontrado,
	}}
	gate := newGate(v)

	for _, token := range []string{"malformado", "vencido", "revogado"} {
		req := httptest.NewRequest(http.MethodGet, "/agendamentos", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, esperava 401", token, rec.Code)
		}
	}
}

func TestAuthTokenValidoViaCookie(t *testing.T) {
	v := &fakeValidator{
		statuses: map[string]auth.TokenStatus{"bom": auth.TokenValido},
		users:    map[string]string{"bom": "maria"},
	}
	gate := newGate(v)

	req := httptest.NewRequest(http.MethodGet, "/agendamentos", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "bom"})
	req.Header.Set("X-Real-IP", "203.0.113.7")
	req.Header.Set("User-Agent", "teste/1.0")
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, esperava 200", rec.Code)
	}
	if got := rec.Header().Get("X-Username"); got != "maria" {
		t.Fatalf("username = %q, esperava maria", got)
	}
	if len(v.devices) != 1 || v.devices[0].IP != "203.0.113.7" || v.devices[0].UserAgent != "teste/1.0" {
		t.Fatalf("dispositivo não capturado: %+v", v.devices)
	}
}

func TestAuthTokenValidoViaBearer(t *testing.T) {
	v := &fakeValidator{
		statuses: map[string]auth.TokenStatus{"bom": auth.TokenValido},
		users:    map[string]string{"bom": "maria"},
	}
	gate := newGate(v)

	req := httptest.NewRequest(http.MethodGet, "/agendamentos", nil)
	req.Header.Set("Authorization", "Bearer bom")
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, esperava 200", rec.Code)
	}
}

func TestTokenFromRequestPrefereCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "do-cookie"})
	req.Header.Set("Authorization", "Bearer do-header")

	if got := TokenFromRequest(req); got != "do-cookie" {
		t.Fatalf("token = %q, esperava do-cookie", got)
	}
}
