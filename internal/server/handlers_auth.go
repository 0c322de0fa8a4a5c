package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *App) register(c *gin.Context) {
	var payload registerRequest
	if !mustJSON(c, &payload) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(c, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(payload.Password) < 8 {
		writeError(c, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	var exists bool
	if err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to check account")
		return
	}
	if exists {
		writeError(c, http.StatusConflict, "An account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	userID := uuid.NewString()
	if _, err := a.db.Exec(
		c.Request.Context(),
		`INSERT INTO users (id, email, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		userID,
		email,
		string(hash),
		roleUser,
	); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	token, expiresAt, err := a.issueToken(userID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC(),
		"user": gin.H{
			"id":    userID,
			"email": email,
			"role":  roleUser,
		},
	})
}

func (a *App) login(c *gin.Context) {
	var payload loginRequest
	if !mustJSON(c, &payload) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" || payload.Password == "" {
		writeError(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	var userID, passwordHash, role string
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT id, password_hash, role FROM users WHERE email = $1`,
		email,
	).Scan(&userID, &passwordHash, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load account")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(payload.Password)) != nil {
		writeError(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if strings.TrimSpace(role) == "" {
		role = roleUser
	}

	token, expiresAt, err := a.issueToken(userID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC(),
		"user": gin.H{
			"id":    userID,
			"email": email,
			"role":  role,
		},
	})
}

func (a *App) session(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func (a *App) issueToken(userID string) (string, time.Time, error) {
	expiryHours := a.cfg.JWTExpiryHours
	if expiryHours <= 0 {
		expiryHours = 72
	}
	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(expiryHours) * time.Hour)

	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	if a.cfg.JWTAudience != "" {
		claims["aud"] = a.cfg.JWTAudience
	}
	if a.cfg.JWTIssuer != "" {
		claims["iss"] = a.cfg.JWTIssuer
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(a.cfg.JWTAlgorithm), claims)
	signed, err := token.SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
