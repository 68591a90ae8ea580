// Package server exposes the chat UI and its JSON endpoints over gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hession/filedesk/internal/agent"
	"github.com/hession/filedesk/internal/auth"
	"github.com/hession/filedesk/internal/config"
	"github.com/hession/filedesk/internal/logger"
)

// sessionCookie name of the login session cookie
const sessionCookie = "filedesk_session"

// TurnRunner handles one user message and returns the reply
type TurnRunner interface {
	RunTurn(ctx context.Context, userMessage string) (string, error)
}

// Server HTTP front end
type Server struct {
	engine      *gin.Engine
	accounts    *auth.Store
	runner      TurnRunner
	addr        string
	turnTimeout time.Duration
	cookieTTL   time.Duration
}

// askRequest body of POST /ask
type askRequest struct {
	Message string `json:"message"`
}

// errorBody JSON error payload
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// New creates the HTTP server and registers all routes
func New(cfg *config.Config, runner TurnRunner, accounts *auth.Store, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.LoggerWithWriter(log.GetWriter(logger.INFO)))
	engine.Use(gin.RecoveryWithWriter(log.GetWriter(logger.ERROR)))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowCredentials = false
	engine.Use(cors.New(corsConfig))

	engine.LoadHTMLGlob(cfg.Server.TemplateGlob)

	s := &Server{
		engine:      engine,
		accounts:    accounts,
		runner:      runner,
		addr:        cfg.Server.Addr,
		turnTimeout: time.Duration(cfg.Agent.TurnTimeoutSeconds) * time.Second,
		cookieTTL:   time.Duration(cfg.Auth.SessionTTLMinutes) * time.Minute,
	}

	engine.GET("/login", s.handleLoginPage)
	engine.POST("/login", s.handleLogin)
	engine.GET("/register", s.handleRegisterPage)
	engine.POST("/register", s.handleRegister)
	engine.POST("/logout", s.handleLogout)

	authed := engine.Group("/", s.requireSession)
	authed.GET("/", s.handleIndex)
	authed.POST("/ask", s.handleAsk)

	return s
}

// Run starts serving; blocks until the listener fails
func (s *Server) Run() error {
	logger.Info("HTTP server listening on %s", s.addr)
	return s.engine.Run(s.addr)
}

// Handler exposes the underlying http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requireSession resolves the session cookie, storing the session in
// the request context. HTML requests bounce to /login, API requests
// get a 401.
func (s *Server) requireSession(c *gin.Context) {
	token, err := c.Cookie(sessionCookie)
	if err == nil && token != "" {
		session, err := s.accounts.GetSession(token)
		if err == nil {
			c.Set("session", session)
			c.Next()
			return
		}
	}

	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, "/login")
	} else {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errorBody{
			Kind:    "unauthorized",
			Message: "Please log in first.",
		}})
	}
	c.Abort()
}

// handleIndex renders the chat page
func (s *Server) handleIndex(c *gin.Context) {
	session := c.MustGet("session").(*auth.Session)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Username": session.Username,
	})
}

// handleAsk runs one conversation turn
func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
			Kind:    "bad_request",
			Message: "Request body must be JSON with a message field.",
		}})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{
			Kind:    "bad_request",
			Message: "Message must not be empty.",
		}})
		return
	}

	session := c.MustGet("session").(*auth.Session)
	logger.Info("Turn started for user %s (%d chars)", session.Username, len(message))

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.turnTimeout)
	defer cancel()

	reply, err := s.runner.RunTurn(ctx, message)
	if err != nil {
		var turnErr *agent.TurnError
		if errors.As(err, &turnErr) {
			logger.Warn("Turn failed for user %s: %s: %v", session.Username, turnErr.Kind, err)
			c.JSON(statusForKind(turnErr.Kind), gin.H{"error": errorBody{
				Kind:    string(turnErr.Kind),
				Message: turnErr.Message(),
			}})
			return
		}
		logger.Error("Turn failed for user %s: %v", session.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorBody{
			Kind:    "internal",
			Message: "Something went wrong. Please try again.",
		}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// statusForKind maps turn failures to HTTP status codes
func statusForKind(kind agent.FailureKind) int {
	switch kind {
	case agent.FailureTimeout:
		return http.StatusGatewayTimeout
	case agent.FailureBlocked:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// handleLoginPage renders the login form
func (s *Server) handleLoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Error": ""})
}

// handleLogin processes a login form submission
func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := s.accounts.Authenticate(username, password)
	if err != nil {
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"Error": "Invalid username or password.",
		})
		return
	}

	if err := s.startSession(c, user.ID); err != nil {
		logger.Error("Failed to create session for %s: %v", user.Username, err)
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{
			"Error": "Something went wrong. Please try again.",
		})
		return
	}

	logger.Info("User %s logged in", user.Username)
	c.Redirect(http.StatusFound, "/")
}

// handleRegisterPage renders the registration form
func (s *Server) handleRegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", gin.H{"Error": ""})
}

// handleRegister processes a registration form submission
func (s *Server) handleRegister(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := s.accounts.Register(username, password)
	if err != nil {
		msg := "Registration failed. Please try again."
		switch {
		case errors.Is(err, auth.ErrUserExists),
			errors.Is(err, auth.ErrInvalidUsername),
			errors.Is(err, auth.ErrWeakPassword):
			msg = err.Error()
		default:
			logger.Error("Failed to register user: %v", err)
		}
		c.HTML(http.StatusBadRequest, "register.html", gin.H{"Error": msg})
		return
	}

	if err := s.startSession(c, user.ID); err != nil {
		logger.Error("Failed to create session for %s: %v", user.Username, err)
		c.HTML(http.StatusInternalServerError, "register.html", gin.H{
			"Error": "Something went wrong. Please try again.",
		})
		return
	}

	logger.Info("User %s registered", user.Username)
	c.Redirect(http.StatusFound, "/")
}

// handleLogout clears the session
func (s *Server) handleLogout(c *gin.Context) {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		if err := s.accounts.DeleteSession(token); err != nil {
			logger.Warn("Failed to delete session: %v", err)
		}
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/login")
}

// startSession issues a session token and sets the cookie
func (s *Server) startSession(c *gin.Context, userID int64) error {
	token, err := s.accounts.CreateSession(userID)
	if err != nil {
		return err
	}
	c.SetCookie(sessionCookie, token, int(s.cookieTTL.Seconds()), "/", "", false, true)
	return nil
}
