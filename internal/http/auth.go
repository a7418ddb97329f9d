package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"pixnest/internal/domain"
)

type registerRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	FullName string `form:"fullname" json:"fullname"`
	Password string `form:"password" json:"password"`
}

// loginRequest takes the identity as username (the login form's field) or login.
type loginRequest struct {
	Username string `form:"username" json:"username"`
	Login    string `form:"login" json:"login"`
	Password string `form:"password" json:"password"`
}

func (r loginRequest) identity() string {
	if strings.TrimSpace(r.Username) != "" {
		return r.Username
	}
	return r.Login
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// echoed back on failure, never with the password
	form := gin.H{"username": req.Username, "email": req.Email, "fullname": req.FullName}

	userID, err := h.credentials.Register(c.Request.Context(), req.Username, req.Email, req.FullName, req.Password)
	if err != nil {
		h.failForm(c, err, form)
		return
	}

	token, err := h.sessions.Establish(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setSessionCookie(c, token)
	c.Redirect(http.StatusSeeOther, "/profile")
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.Redirect(http.StatusSeeOther, loginRedirect(domain.ErrInvalidCredentials))
		return
	}

	userID, err := h.credentials.Verify(c.Request.Context(), req.identity(), req.Password)
	if err != nil {
		if statusFor(err) >= http.StatusInternalServerError {
			h.fail(c, err)
			return
		}
		c.Redirect(http.StatusSeeOther, loginRedirect(domain.ErrInvalidCredentials))
		return
	}

	token, err := h.sessions.Establish(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.setSessionCookie(c, token)
	c.Redirect(http.StatusSeeOther, "/profile")
}

func (h *Handler) logout(c *gin.Context) {
	for _, token := range h.tokens(c) {
		if err := h.sessions.Invalidate(c.Request.Context(), token); err != nil {
			h.fail(c, err)
			return
		}
	}
	h.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/")
}

// authenticate resolves the request's session token to a user id, answering
// 401 itself when there is none. A cookie that no longer resolves does not
// shadow a valid bearer token.
func (h *Handler) authenticate(c *gin.Context) (int64, bool) {
	err := domain.ErrUnauthenticated
	for _, token := range h.tokens(c) {
		var userID int64
		userID, err = h.sessions.Resolve(c.Request.Context(), token)
		if err == nil {
			return userID, true
		}
		if !errors.Is(err, domain.ErrUnauthenticated) {
			break
		}
	}
	h.fail(c, err)
	return 0, false
}

// tokens returns the session cookie and the bearer token, in that order,
// skipping whichever is absent.
func (h *Handler) tokens(c *gin.Context) []string {
	var tokens []string
	if cookie, err := c.Cookie(h.opts.CookieName); err == nil && cookie != "" {
		tokens = append(tokens, cookie)
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		if bearer := strings.TrimSpace(header[7:]); bearer != "" && (len(tokens) == 0 || tokens[0] != bearer) {
			tokens = append(tokens, bearer)
		}
	}
	return tokens
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.opts.CookieName, token, int(h.opts.SessionTTL.Seconds()), "/", "", h.opts.CookieSecure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.opts.CookieName, "", -1, "/", "", h.opts.CookieSecure, true)
}

func loginRedirect(err error) string {
	return "/login?error=" + url.QueryEscape(err.Error())
}
