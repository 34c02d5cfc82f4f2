package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mchileshe/CourierIQ/internal/analytics"
	"github.com/mchileshe/CourierIQ/internal/auth"
	"github.com/mchileshe/CourierIQ/internal/config"
	"github.com/mchileshe/CourierIQ/internal/database"
	apierrors "github.com/mchileshe/CourierIQ/internal/errors"
	"github.com/mchileshe/CourierIQ/internal/logging"
	"github.com/mchileshe/CourierIQ/internal/middleware"
	"github.com/mchileshe/CourierIQ/internal/monitoring"
	"github.com/mchileshe/CourierIQ/internal/store"
	"github.com/mchileshe/CourierIQ/internal/tagging"
)

// APIServer represents the main API server
type APIServer struct {
	config           *config.Config
	router           *gin.Engine
	db               *database.DB
	reviews          store.ReviewStore
	authService      *auth.Service
	taggingService   *tagging.Service
	analyticsService *analytics.Service
	jwtAuthenticator *middleware.JWTAuthenticator
}

// Deps carries the services the server routes to
type Deps struct {
	DB        *database.DB
	Reviews   store.ReviewStore
	Tagging   *tagging.Service
	Analytics *analytics.Service
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, deps Deps) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware order matters: recovery first, request ID before logging
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	srv := &APIServer{
		config:           cfg,
		router:           router,
		db:               deps.DB,
		reviews:          deps.Reviews,
		authService:      auth.NewService(deps.DB.Pool, &cfg.JWT),
		taggingService:   deps.Tagging,
		analyticsService: deps.Analytics,
		jwtAuthenticator: middleware.NewJWTAuthenticator(&cfg.JWT),
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// Auth routes (public)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", s.handleRegister)
			authGroup.POST("/login", s.handleLogin)
			authGroup.POST("/refresh", s.handleRefresh)
		}

		// Review routes (authenticated; destructive and tagging operations
		// require the admin role)
		reviews := v1.Group("/reviews")
		reviews.Use(s.jwtAuthenticator.JWTAuth())
		{
			reviews.GET("/", s.handleListReviews)
			reviews.POST("/", s.handleCreateReview)
			reviews.DELETE("/:id", middleware.RequireAdmin(), s.handleDeleteReview)
			reviews.POST("/auto-tag", middleware.RequireAdmin(), s.handleAutoTag)
			reviews.PUT("/:id/tags", middleware.RequireAdmin(), s.handleManualTag)
		}

		// Analytics routes (authenticated)
		analyticsGroup := v1.Group("/analytics")
		analyticsGroup.Use(s.jwtAuthenticator.JWTAuth())
		{
			analyticsGroup.GET("/", s.handleAnalytics)
		}

		// User management routes (admin only)
		users := v1.Group("/users")
		users.Use(s.jwtAuthenticator.JWTAuth(), middleware.RequireAdmin())
		{
			users.GET("/", s.handleListUsers)
			users.DELETE("/:id", s.handleDeleteUser)
		}
	}
}

// healthCheck reports service and storage health
func (s *APIServer) healthCheck(c *gin.Context) {
	if err := s.db.Health(c.Request.Context()); err != nil {
		respondError(c, apierrors.ErrStorageUnavailableError)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "api",
	})
}

// handleRegister handles user registration
func (s *APIServer) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch err {
		case auth.ErrEmailAlreadyExists:
			respondError(c, apierrors.NewInvalidRequestError("Email already registered"))
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// handleLogin handles user login
func (s *APIServer) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			respondError(c, apierrors.ErrInvalidCredentialsError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleRefresh handles token refresh
func (s *APIServer) handleRefresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	tokens, err := s.authService.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch err {
		case auth.ErrInvalidToken:
			respondError(c, apierrors.ErrInvalidCredentialsError)
		case auth.ErrUserNotFound:
			respondError(c, apierrors.ErrUserNotFoundError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// handleListUsers returns every non-admin account (admin only)
func (s *APIServer) handleListUsers(c *gin.Context) {
	users, err := s.authService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, apierrors.ErrInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"count": len(users),
	})
}

// handleDeleteUser removes a user account (admin only)
func (s *APIServer) handleDeleteUser(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewValidationError(gin.H{"field": "id", "reason": "must be a valid UUID"}))
		return
	}

	if id == middleware.GetUserIDFromContext(c) {
		respondError(c, apierrors.NewInvalidRequestError("Cannot delete your own account"))
		return
	}

	if err := s.authService.DeleteUser(c.Request.Context(), id); err != nil {
		switch err {
		case auth.ErrUserNotFound:
			respondError(c, apierrors.ErrUserNotFoundError)
		default:
			respondError(c, apierrors.ErrInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, middleware.GetRequestIDFromContext(c)))
}

// respondStoreError maps a storage failure to its API error: connectivity
// failures are 503, anything else is 500.
func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrStorageUnavailable) {
		respondError(c, apierrors.ErrStorageUnavailableError)
		return
	}
	respondError(c, apierrors.ErrInternalServerError)
}
