package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/swappy/picora/internal/auth"
	"github.com/swappy/picora/internal/booking"
	"github.com/swappy/picora/internal/workbook"
	"go.uber.org/zap"
)

const operatorContextKey = "picora_operator"

var (
	errMissingBookingService = errors.New("booking service dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingAuthenticator  = errors.New("operator authenticator dependency required")
	errMissingImporter       = errors.New("workbook importer dependency required")
	errMissingPhotoStore     = errors.New("photo store dependency required")
)

type TokenManager interface {
	IssueToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

type OperatorAuthenticator interface {
	Authenticate(pin string) (string, error)
}

type PhotoStore interface {
	Save(ctx context.Context, appointmentID int64, source io.Reader) (string, error)
	Open(uri string) (*os.File, error)
}

type Dependencies struct {
	BookingService *booking.Service
	Importer       *workbook.Importer
	Photos         PhotoStore
	TokenManager   TokenManager
	Authenticator  OperatorAuthenticator
	AllowedOrigins []string
	Clock          func() time.Time
	Logger         *zap.Logger

	// StreamsDone, once closed, ends every open event stream.
	StreamsDone <-chan struct{}
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.BookingService == nil {
		return nil, errMissingBookingService
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Authenticator == nil {
		return nil, errMissingAuthenticator
	}
	if deps.Importer == nil {
		return nil, errMissingImporter
	}
	if deps.Photos == nil {
		return nil, errMissingPhotoStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	handler := &httpHandler{
		service:       deps.BookingService,
		importer:      deps.Importer,
		photos:        deps.Photos,
		tokens:        deps.TokenManager,
		authenticator: deps.Authenticator,
		location:      deps.BookingService.Location(),
		clock:         clock,
		logger:        logger,
		streamsDone:   deps.StreamsDone,
	}

	router.POST("/auth/session", handler.handleSession)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/appointments", handler.handleListAppointments)
	protected.POST("/appointments", handler.handleCreateAppointment)
	protected.GET("/appointments/export", handler.handleExportAppointments)
	protected.POST("/appointments/clear", handler.handleClearAppointments)
	protected.GET("/appointments/:id", handler.handleGetAppointment)
	protected.PUT("/appointments/:id", handler.handleUpdateAppointment)
	protected.DELETE("/appointments/:id", handler.handleDeleteAppointment)
	protected.GET("/appointments/:id/ics", handler.handleAppointmentICS)
	protected.GET("/appointments/:id/qr", handler.handleAppointmentQR)
	protected.POST("/appointments/:id/photo", handler.handleUploadPhoto)
	protected.GET("/appointments/:id/photo", handler.handleDownloadPhoto)

	protected.GET("/board", handler.handleBoard)
	protected.GET("/time-slots", handler.handleListTimeSlots)
	protected.POST("/time-slots", handler.handleAddTimeSlots)
	protected.POST("/time-slots/generate", handler.handleGenerateTimeSlots)
	protected.GET("/guests", handler.handleListGuests)
	protected.GET("/photographers", handler.handleListPhotographers)
	protected.GET("/occasions", handler.handleListOccasions)
	protected.POST("/import", handler.handleImport)
	protected.GET("/port-names/:date", handler.handleGetPortName)
	protected.PUT("/port-names/:date", handler.handleSavePortName)
	protected.DELETE("/port-names/:date", handler.handleClearPortName)
	protected.POST("/wipe", handler.handleWipe)

	protected.GET("/events", handler.handleEvents)

	return router, nil
}

func corsMiddleware(origins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

type httpHandler struct {
	service       *booking.Service
	importer      *workbook.Importer
	photos        PhotoStore
	tokens        TokenManager
	authenticator OperatorAuthenticator
	location      *time.Location
	clock         func() time.Time
	logger        *zap.Logger
	streamsDone   <-chan struct{}
}

type sessionRequestPayload struct {
	PIN string `json:"pin"`
}

type sessionResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleSession(c *gin.Context) {
	var request sessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.PIN) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	subject, err := h.authenticator.Authenticate(request.PIN)
	if err != nil {
		h.logger.Warn("operator login rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), subject)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, err := auth.TokenFromRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(operatorContextKey, subject)
	c.Next()
}

// writeServiceError maps booking and workbook failures onto HTTP statuses.
func (h *httpHandler) writeServiceError(c *gin.Context, err error, code string) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, booking.ErrInvalidTimeSlot), errors.Is(err, booking.ErrInvalidSlotSeries):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_time_slot", "detail": err.Error()})
	case errors.Is(err, workbook.ErrUnreadableWorkbook):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_workbook"})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		var serviceErr *booking.ServiceError
		if errors.As(err, &serviceErr) {
			h.logger.Error("request failed", zap.String("code", serviceErr.Code()), zap.Error(err))
		} else {
			h.logger.Error("request failed", zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": code})
	}
}
