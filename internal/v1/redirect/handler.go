// Package redirect implements the HTTP surface the identity provider
// redirects back to once a participant has completed its sign-in flow.
package redirect

import (
	"context"
	"net/http"

	"github.com/RoseWrightdev/conference-authority/internal/v1/logging"
	"github.com/RoseWrightdev/conference-authority/internal/v1/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// authenticator is the subset of *authority.Authority the handler needs.
type authenticator interface {
	Authenticate(ctx context.Context, tokenString types.TokenString, externalIdentity types.ExternalIdentity) bool
}

// Handler serves the identity-provider callback. It extracts the opaque
// authentication token and an identity assertion from the request and
// hands both to the Authority; it makes no authorization decisions of
// its own.
type Handler struct {
	authority authenticator
	validator types.TokenValidator
	onSuccess string
	onFailure string
}

// Option configures a Handler.
type Option func(*Handler)

// WithTokenValidator enables the id_token query parameter path: when set,
// the handler verifies id_token as a JWT and uses its subject claim as the
// external identity instead of trusting a raw identity parameter.
func WithTokenValidator(v types.TokenValidator) Option {
	return func(h *Handler) { h.validator = v }
}

// WithRedirects sets the URLs the handler redirects to on success and
// failure. The handler redirects to them unchanged, without adding query
// parameters.
func WithRedirects(onSuccess, onFailure string) Option {
	return func(h *Handler) {
		h.onSuccess = onSuccess
		h.onFailure = onFailure
	}
}

// NewHandler constructs a Handler backed by authority.
func NewHandler(authority authenticator, opts ...Option) *Handler {
	h := &Handler{authority: authority}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP handles GET /redirect?token=...&identity=... (or id_token=...).
// It responds 400 when the token parameter is missing. Otherwise, if
// redirects are configured it responds 302 to the success or failure URL;
// if not, it responds with a JSON body reporting whether authentication
// succeeded, with status 200 on success and 401 on failure (including an
// unknown/expired token or an id_token that fails validation).
func (h *Handler) ServeHTTP(c *gin.Context) {
	ctx := c.Request.Context()

	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token parameter"})
		return
	}

	identity, err := h.resolveIdentity(c)
	if err != nil {
		logging.Warn(ctx, "redirect handler could not resolve identity", zap.Error(err))
		h.respond(c, false)
		return
	}

	ok := h.authority.Authenticate(ctx, types.TokenString(tokenString), identity)
	h.respond(c, ok)
}

func (h *Handler) resolveIdentity(c *gin.Context) (types.ExternalIdentity, error) {
	if idToken := c.Query("id_token"); idToken != "" && h.validator != nil {
		claims, err := h.validator.ValidateToken(idToken)
		if err != nil {
			return "", err
		}
		return types.ExternalIdentity(claims.Subject), nil
	}

	return types.ExternalIdentity(c.Query("identity")), nil
}

func (h *Handler) respond(c *gin.Context, ok bool) {
	if !ok && h.onFailure != "" {
		c.Redirect(http.StatusFound, h.onFailure)
		return
	}
	if ok && h.onSuccess != "" {
		c.Redirect(http.StatusFound, h.onSuccess)
		return
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{"authenticated": ok})
}

// RegisterRoutes wires the handler's endpoint onto router.
func RegisterRoutes(router gin.IRouter, h *Handler) {
	router.GET("/redirect", h.ServeHTTP)
}
