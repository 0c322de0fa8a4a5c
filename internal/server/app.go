package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Domskk/wanderworks/internal/config"
)

const (
	roleAdmin = "admin"
	roleUser  = "user"
)

type App struct {
	cfg        config.Config
	db         *pgxpool.Pool
	ai         AIClient
	memory     DialogueMemory
	geo        *GeoClient
	translator *TranslateClient
}

type AuthUser struct {
	ID    string
	Email string
	Role  string
}

func New(cfg config.Config, db *pgxpool.Pool) *App {
	var ai AIClient = NewOpenRouterClient(cfg)
	if strings.TrimSpace(cfg.OpenRouterAPIKey) == "" && cfg.AppEnv == "test" {
		ai = MockAIClient{}
	}
	return NewWithClients(cfg, db, ai, NewDialogueMemory())
}

// NewWithClients lets tests inject the AI client and dialogue memory.
func NewWithClients(cfg config.Config, db *pgxpool.Pool, ai AIClient, memory DialogueMemory) *App {
	return &App{
		cfg:        cfg,
		db:         db,
		ai:         ai,
		memory:     memory,
		geo:        NewGeoClient(cfg),
		translator: NewTranslateClient(cfg),
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", a.health)

	api := router.Group(a.cfg.APIPrefix)
	api.Use(a.optionalAuthMiddleware())

	api.POST("/auth/register", a.register)
	api.POST("/auth/login", a.login)

	api.POST("/chat", a.chat)
	api.POST("/tips", a.lookupTip)
	api.GET("/phrases", a.listPhrases)
	api.GET("/destinations", a.listDestinations)
	api.POST("/geo-code", a.reverseGeocode)
	api.POST("/translate", a.translateText)
	api.POST("/context-reply", a.contextReply)

	authed := api.Group("")
	authed.Use(a.requireAuth())
	authed.GET("/auth/session", a.session)
	authed.GET("/chat/history", a.getChatHistory)
	authed.DELETE("/chat/history", a.clearChatHistory)

	admin := authed.Group("/admin")
	admin.Use(a.requireAdmin())
	admin.GET("/users", a.listUsers)
	for _, table := range contentTables {
		resource := admin.Group("/" + table.slug)
		resource.GET("", a.adminListContent(table))
		resource.POST("", a.adminCreateContent(table))
		resource.PUT("/:id", a.adminUpdateContent(table))
		resource.DELETE("/:id", a.adminDeleteContent(table))
	}

	return router
}

func (a *App) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "wanderworks-api",
	})
}

// optionalAuthMiddleware resolves the caller when a bearer token is
// present but lets anonymous traffic through; the chat endpoint serves
// guests too.
func (a *App) optionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.userFromBearer(c)
		if err == nil {
			c.Set("authUser", user)
		}
		c.Next()
	}
}

func (a *App) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authUserFromContext(c); !ok {
			user, err := a.userFromBearer(c)
			if err != nil {
				writeError(c, http.StatusUnauthorized, err.Error())
				return
			}
			c.Set("authUser", user)
		}
		c.Next()
	}
}

func (a *App) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := authUserFromContext(c)
		if !ok {
			writeError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if user.Role != roleAdmin {
			writeError(c, http.StatusForbidden, "Admin role required")
			return
		}
		c.Next()
	}
}

func (a *App) userFromBearer(c *gin.Context) (AuthUser, error) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return AuthUser{}, errors.New("Bearer token required")
	}
	tokenString := strings.TrimSpace(authHeader[len("Bearer "):])
	if tokenString == "" {
		return AuthUser{}, errors.New("Bearer token required")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if token.Method == nil || token.Method.Alg() != a.cfg.JWTAlgorithm {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return AuthUser{}, errors.New("Invalid bearer token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return AuthUser{}, errors.New("Invalid token payload")
	}
	if a.cfg.JWTAudience != "" && !claimHasAudience(claims["aud"], a.cfg.JWTAudience) {
		return AuthUser{}, errors.New("Invalid token audience")
	}
	if a.cfg.JWTIssuer != "" {
		issuer, _ := claims["iss"].(string)
		if issuer != a.cfg.JWTIssuer {
			return AuthUser{}, errors.New("Invalid token issuer")
		}
	}
	sub, _ := claims["sub"].(string)
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return AuthUser{}, errors.New("Token subject missing")
	}

	return a.loadUser(c.Request.Context(), sub)
}

func (a *App) loadUser(ctx context.Context, userID string) (AuthUser, error) {
	user := AuthUser{}
	err := a.db.QueryRow(
		ctx,
		`SELECT id, email, role FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Email, &user.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return AuthUser{}, errors.New("User not found")
	}
	if err != nil {
		return AuthUser{}, err
	}
	if strings.TrimSpace(user.Role) == "" {
		user.Role = roleUser
	}
	return user, nil
}

func claimHasAudience(value any, audience string) bool {
	switch v := value.(type) {
	case string:
		return v == audience
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == audience {
				return true
			}
		}
	case []string:
		for _, item := range v {
			if item == audience {
				return true
			}
		}
	}
	return false
}

func authUserFromContext(c *gin.Context) (AuthUser, bool) {
	raw, ok := c.Get("authUser")
	if !ok {
		return AuthUser{}, false
	}
	user, ok := raw.(AuthUser)
	return user, ok
}

func writeError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

func parseJSONStringMap(input []byte) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	var result map[string]any
	if err := json.Unmarshal(input, &result); err != nil || result == nil {
		return map[string]any{}
	}
	return result
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
