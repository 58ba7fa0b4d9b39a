package redirect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RoseWrightdev/conference-authority/internal/v1/auth"
	"github.com/RoseWrightdev/conference-authority/internal/v1/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthority struct {
	result   bool
	gotToken types.TokenString
	gotIdent types.ExternalIdentity
}

func (f *fakeAuthority) Authenticate(ctx context.Context, tokenString types.TokenString, externalIdentity types.ExternalIdentity) bool {
	f.gotToken = tokenString
	f.gotIdent = externalIdentity
	return f.result
}

type fakeValidator struct {
	subject string
	err     error
}

func (f *fakeValidator) ValidateToken(tokenString string) (*auth.CustomClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	claims := &auth.CustomClaims{}
	claims.Subject = f.subject
	return claims, nil
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	RegisterRoutes(r, h)
	return r
}

func TestServeHTTP_RawIdentitySuccess(t *testing.T) {
	fa := &fakeAuthority{result: true}
	h := NewHandler(fa)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/redirect?token=tok123&identity=alice@idp", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.TokenString("tok123"), fa.gotToken)
	assert.Equal(t, types.ExternalIdentity("alice@idp"), fa.gotIdent)
	assert.JSONEq(t, `{"authenticated":true}`, w.Body.String())
}

func TestServeHTTP_AuthenticateFails(t *testing.T) {
	fa := &fakeAuthority{result: false}
	h := NewHandler(fa)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/redirect?token=bad&identity=alice@idp", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServeHTTP_MissingToken(t *testing.T) {
	fa := &fakeAuthority{result: true}
	h := NewHandler(fa)
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/redirect?identity=alice@idp", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeHTTP_IDTokenPath(t *testing.T) {
	fa := &fakeAuthority{result: true}
	h := NewHandler(fa, WithTokenValidator(&fakeValidator{subject: "alice-sub"}))
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/redirect?token=tok123&id_token=whatever", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.ExternalIdentity("alice-sub"), fa.gotIdent)
}

func TestServeHTTP_IDTokenInvalid(t *testing.T) {
	fa := &fakeAuthority{result: true}
	h := NewHandler(fa, WithTokenValidator(&fakeValidator{err: assert.AnError}))
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/redirect?token=tok123&id_token=bad", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServeHTTP_RedirectsWhenConfigured(t *testing.T) {
	fa := &fakeAuthority{result: true}
	h := NewHandler(fa, WithRedirects("https://app/ok", "https://app/fail"))
	r := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/redirect?token=tok123&identity=alice@idp", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app/ok", w.Header().Get("Location"))
}
