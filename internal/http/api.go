package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pixnest/internal/domain"
	"pixnest/internal/service"
)

// ObjectAuditor reports, and on request removes, stored objects nothing
// refers to.
type ObjectAuditor interface {
	UnreferencedObjects(ctx context.Context) ([]string, error)
	DeleteUnreferenced(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Services bundles the domain services the handlers call.
type Services struct {
	Credentials service.CredentialService
	Sessions    service.SessionService
	Media       service.MediaService
	Posts       service.PostService
	Profile     service.ProfileService
	Auditor     ObjectAuditor
}

type Options struct {
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
	PostFolder   string
	CleanupGrace time.Duration
	Logger       *logrus.Logger
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	credentials service.CredentialService
	sessions    service.SessionService
	media       service.MediaService
	posts       service.PostService
	profile     service.ProfileService
	auditor     ObjectAuditor
	opts        Options
	logger      *logrus.Entry
}

func NewHandler(svc Services, opts Options) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = "pixnest_session"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.PostFolder == "" {
		opts.PostFolder = "posts"
	}
	if opts.CleanupGrace <= 0 {
		opts.CleanupGrace = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Handler{
		credentials: svc.Credentials,
		sessions:    svc.Sessions,
		media:       svc.Media,
		posts:       svc.Posts,
		profile:     svc.Profile,
		auditor:     svc.Auditor,
		opts:        opts,
		logger:      opts.Logger.WithField("component", "http"),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger), corsMiddleware())

	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.GET("/logout", h.logout)

	router.POST("/upload", h.upload)
	router.POST("/delete/:id", h.deletePost)
	router.POST("/update/:id", h.updateProfile)
	router.GET("/remove/:id", h.removeAvatar)

	router.GET("/profile", h.ownProfile)
	router.GET("/edit", h.ownProfile)
	router.GET("/users/:id", h.userProfile)
	router.GET("/feed", h.feed)
	router.GET("/posts/:id", h.getPost)
	router.GET("/maintenance/unreferenced", h.unreferencedObjects)
	router.DELETE("/maintenance/unreferenced", h.deleteUnreferencedObjects)

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		}).Info("request")
	}
}

// statusFor maps the domain error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedMedia):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps internal detail (storage errors, SQL) out of responses.
func publicMessage(err error) string {
	for _, known := range []error{
		domain.ErrDuplicateIdentity,
		domain.ErrInvalidCredentials,
		domain.ErrUnauthenticated,
		domain.ErrForbidden,
		domain.ErrUnsupportedMedia,
		domain.ErrPayloadTooLarge,
		domain.ErrStorageUnavailable,
		domain.ErrNotFound,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return err.Error()
	}
	return "internal error"
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	}
	c.JSON(status, gin.H{"error": publicMessage(err)})
}

// failForm answers a form submission that must be shown again with its error.
func (h *Handler) failForm(c *gin.Context, err error, form any) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("form submission failed")
	}
	c.JSON(status, gin.H{"error": publicMessage(err), "form": form})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
