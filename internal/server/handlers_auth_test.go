package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func newDBTestApp(t *testing.T) *App {
	pool := requireTestPool(t)
	return NewWithClients(newTestConfig(), pool, MockAIClient{}, NewDialogueMemory())
}

func cleanupUser(t *testing.T, email string) {
	t.Helper()
	t.Cleanup(func() {
		ctx := context.Background()
		if _, err := testPool.Exec(
			ctx,
			`DELETE FROM chat_history WHERE user_id IN (SELECT id FROM users WHERE email = $1)`,
			email,
		); err != nil {
			t.Errorf("cleanup chat history for %s: %v", email, err)
		}
		if _, err := testPool.Exec(ctx, `DELETE FROM users WHERE email = $1`, email); err != nil {
			t.Errorf("cleanup user %s: %v", email, err)
		}
	})
}

func insertTestUser(t *testing.T, email, password, role string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	userID := uuid.NewString()
	if _, err := testPool.Exec(
		context.Background(),
		`INSERT INTO users (id, email, password_hash, role, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		userID,
		email,
		string(hash),
		role,
	); err != nil {
		t.Fatalf("insert test user: %v", err)
	}
	cleanupUser(t, email)
	return userID
}

func TestRegisterLoginSessionFlow(t *testing.T) {
	app := newDBTestApp(t)
	router := app.Router()

	email := fmt.Sprintf("traveler-%s@example.com", uuid.NewString()[:8])
	cleanupUser(t, email)

	registered := performJSON(t, router, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":    email,
		"password": "super-secret-pass",
	}, "")
	if registered.Code != http.StatusOK {
		t.Fatalf("register status %d: %s", registered.Code, registered.Body.String())
	}
	if token := decodeJSONBody(t, registered)["token"]; token == nil || token == "" {
		t.Fatal("register must return a token")
	}

	duplicate := performJSON(t, router, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":    email,
		"password": "super-secret-pass",
	}, "")
	if duplicate.Code != http.StatusConflict {
		t.Fatalf("duplicate register status %d, want 409", duplicate.Code)
	}

	loggedIn := performJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": "super-secret-pass",
	}, "")
	if loggedIn.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", loggedIn.Code, loggedIn.Body.String())
	}
	token, _ := decodeJSONBody(t, loggedIn)["token"].(string)
	if token == "" {
		t.Fatal("login must return a token")
	}

	badLogin := performJSON(t, router, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email":    email,
		"password": "wrong-password",
	}, "")
	if badLogin.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status %d, want 401", badLogin.Code)
	}

	session := performJSON(t, router, http.MethodGet, "/api/v1/auth/session", nil, token)
	if session.Code != http.StatusOK {
		t.Fatalf("session status %d: %s", session.Code, session.Body.String())
	}
	user, _ := decodeJSONBody(t, session)["user"].(map[string]any)
	if user["email"] != email || user["role"] != roleUser {
		t.Fatalf("unexpected session user: %v", user)
	}

	anonymous := performJSON(t, router, http.MethodGet, "/api/v1/auth/session", nil, "")
	if anonymous.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous session status %d, want 401", anonymous.Code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	app := newDBTestApp(t)
	router := app.Router()

	userEmail := fmt.Sprintf("plain-%s@example.com", uuid.NewString()[:8])
	userID := insertTestUser(t, userEmail, "super-secret-pass", roleUser)
	userToken, _, err := app.issueToken(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	adminEmail := fmt.Sprintf("admin-%s@example.com", uuid.NewString()[:8])
	adminID := insertTestUser(t, adminEmail, "super-secret-pass", roleAdmin)
	adminToken, _, err := app.issueToken(adminID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	forbidden := performJSON(t, router, http.MethodGet, "/api/v1/admin/users", nil, userToken)
	if forbidden.Code != http.StatusForbidden {
		t.Fatalf("user hitting admin route: status %d, want 403", forbidden.Code)
	}

	allowed := performJSON(t, router, http.MethodGet, "/api/v1/admin/users", nil, adminToken)
	if allowed.Code != http.StatusOK {
		t.Fatalf("admin listing users: status %d: %s", allowed.Code, allowed.Body.String())
	}
	if _, ok := decodeJSONBody(t, allowed)["users"]; !ok {
		t.Fatal("admin users response must carry a users array")
	}
}

func TestAdminContentCRUDRoundTrip(t *testing.T) {
	app := newDBTestApp(t)
	router := app.Router()

	adminEmail := fmt.Sprintf("admin-%s@example.com", uuid.NewString()[:8])
	adminID := insertTestUser(t, adminEmail, "super-secret-pass", roleAdmin)
	adminToken, _, err := app.issueToken(adminID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	created := performJSON(t, router, http.MethodPost, "/api/v1/admin/tips", map[string]any{
		"country":   "Testlandia",
		"tip":       "Always greet the ferry captain.",
		"etiquette": "Remove hats indoors.",
	}, adminToken)
	if created.Code != http.StatusOK {
		t.Fatalf("create tip status %d: %s", created.Code, created.Body.String())
	}
	idValue, _ := decodeJSONBody(t, created)["id"].(float64)
	if idValue <= 0 {
		t.Fatalf("create tip must return a positive id, got %v", idValue)
	}
	id := int64(idValue)
	t.Cleanup(func() {
		testPool.Exec(context.Background(), `DELETE FROM cultural_tips WHERE country = 'Testlandia'`)
	})

	updated := performJSON(t, router, http.MethodPut, fmt.Sprintf("/api/v1/admin/tips/%d", id), map[string]any{
		"country":   "Testlandia",
		"tip":       "Always greet the ferry captain twice.",
		"etiquette": "Remove hats indoors.",
	}, adminToken)
	if updated.Code != http.StatusOK {
		t.Fatalf("update tip status %d: %s", updated.Code, updated.Body.String())
	}

	lookup := performJSON(t, router, http.MethodPost, "/api/v1/tips", map[string]any{
		"country": "Testlandia",
	}, "")
	if lookup.Code != http.StatusOK {
		t.Fatalf("tip lookup status %d: %s", lookup.Code, lookup.Body.String())
	}
	tip, _ := decodeJSONBody(t, lookup)["tip"].(string)
	if tip == "" {
		t.Fatalf("expected stored tip, got %s", lookup.Body.String())
	}

	deleted := performJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/admin/tips/%d", id), nil, adminToken)
	if deleted.Code != http.StatusOK {
		t.Fatalf("delete tip status %d: %s", deleted.Code, deleted.Body.String())
	}

	missing := performJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/admin/tips/%d", id), nil, adminToken)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("deleting a removed tip: status %d, want 404", missing.Code)
	}
}

func TestChatHistoryPersistsForAuthenticatedUsers(t *testing.T) {
	app := newDBTestApp(t)
	router := app.Router()

	email := fmt.Sprintf("history-%s@example.com", uuid.NewString()[:8])
	userID := insertTestUser(t, email, "super-secret-pass", roleUser)
	token, _, err := app.issueToken(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	chat := performJSON(t, router, http.MethodPost, "/api/v1/chat", map[string]any{
		"message": `How do you say "thank you" in Japanese?`,
	}, token)
	if chat.Code != http.StatusOK {
		t.Fatalf("chat status %d: %s", chat.Code, chat.Body.String())
	}

	history := performJSON(t, router, http.MethodGet, "/api/v1/chat/history", nil, token)
	if history.Code != http.StatusOK {
		t.Fatalf("history status %d: %s", history.Code, history.Body.String())
	}
	items, _ := decodeJSONBody(t, history)["history"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one history row, got %d", len(items))
	}
	first, _ := items[0].(map[string]any)
	if first["is_translation"] != true {
		t.Fatalf("expected translation row, got %v", first)
	}

	cleared := performJSON(t, router, http.MethodDelete, "/api/v1/chat/history", nil, token)
	if cleared.Code != http.StatusOK {
		t.Fatalf("clear history status %d: %s", cleared.Code, cleared.Body.String())
	}
	if deleted, _ := decodeJSONBody(t, cleared)["deleted"].(float64); deleted != 1 {
		t.Fatalf("expected one deleted row, got %v", deleted)
	}

	empty := performJSON(t, router, http.MethodGet, "/api/v1/chat/history", nil, token)
	items, _ = decodeJSONBody(t, empty)["history"].([]any)
	if len(items) != 0 {
		t.Fatalf("expected empty history after clear, got %d rows", len(items))
	}
}

func TestTipFallbackWhenCountryUnknownToDatabase(t *testing.T) {
	app := newDBTestApp(t)
	router := app.Router()

	lookup := performJSON(t, router, http.MethodPost, "/api/v1/tips", map[string]any{
		"country": "Vietnam",
	}, "")
	if lookup.Code != http.StatusOK {
		t.Fatalf("tip lookup status %d: %s", lookup.Code, lookup.Body.String())
	}
	if decodeJSONBody(t, lookup)["tip"] == nil {
		t.Fatal("expected a fallback tip for Vietnam")
	}

	unknown := performJSON(t, router, http.MethodPost, "/api/v1/tips", map[string]any{
		"country": "Atlantis",
	}, "")
	if unknown.Code != http.StatusOK {
		t.Fatalf("tip lookup status %d: %s", unknown.Code, unknown.Body.String())
	}
	if tip := decodeJSONBody(t, unknown)["tip"]; tip != nil {
		t.Fatalf("expected null tip for unknown country, got %v", tip)
	}
}
