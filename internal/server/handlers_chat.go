package server

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// chatEnvelope is the outward reply contract. Every field is always
// present; the string fields are empty (never null) when the turn was not
// a translation.
type chatEnvelope struct {
	Reply         string `json:"reply"`
	IsTranslation bool   `json:"isTranslation"`
	LocalSpeak    string `json:"localSpeak"`
	LocalLang     string `json:"localLang"`
	TargetCountry string `json:"targetCountry"`
}

func (a *App) chat(c *gin.Context) {
	var payload chatRequest
	if !mustJSON(c, &payload) {
		return
	}
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		writeError(c, http.StatusBadRequest, "message is required")
		return
	}

	user, authenticated := authUserFromContext(c)
	conversationKey := a.conversationKey(user, authenticated, payload.UserID)

	prior, _ := a.memory.Get(conversationKey)
	intent := classifyIntent(message, prior)

	var envelope chatEnvelope
	switch intent.Kind {
	case intentTranslation, intentFollowupTranslation:
		target := resolveIntentLanguage(intent.LanguageAlias)
		outcome := a.translatePhrase(c.Request.Context(), intent.Phrase, target)
		envelope = chatEnvelope{
			Reply:         outcome.Reply,
			IsTranslation: true,
			LocalSpeak:    outcome.PronunciationHint,
			LocalLang:     outcome.LanguageCode,
			TargetCountry: outcome.CountryName,
		}
		a.memory.Set(conversationKey, dialogueState{
			LastLanguage: intent.LanguageAlias,
			LastTopic:    dialogueTopicTranslation,
		})
	default:
		envelope = chatEnvelope{
			Reply: a.converse(c.Request.Context(), message),
		}
	}

	if authenticated {
		a.recordChatTurn(c.Request.Context(), user.ID, message, envelope)
	}

	c.JSON(http.StatusOK, envelope)
}

func (a *App) conversationKey(user AuthUser, authenticated bool, bodyUserID string) string {
	if authenticated {
		return user.ID
	}
	if key := strings.TrimSpace(bodyUserID); key != "" {
		return key
	}
	if key := strings.TrimSpace(a.cfg.GuestConversationKey); key != "" {
		return key
	}
	return "guest"
}

// recordChatTurn persists one exchange. History is best-effort: a failed
// insert is logged and the reply still goes out.
func (a *App) recordChatTurn(ctx context.Context, userID, message string, envelope chatEnvelope) {
	_, err := a.db.Exec(
		ctx,
		`INSERT INTO chat_history (id, user_id, message, reply, is_translation, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		uuid.NewString(),
		userID,
		message,
		envelope.Reply,
		envelope.IsTranslation,
	)
	if err != nil {
		log.Printf("chat history insert failed user_id=%s err=%v", userID, err)
	}
}

func (a *App) getChatHistory(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := 50
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		if parsed, err := strconv.Atoi(rawLimit); err == nil && parsed > 0 {
			if parsed > 200 {
				parsed = 200
			}
			limit = parsed
		}
	}

	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT id, message, reply, is_translation, created_at
		 FROM chat_history
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		user.ID,
		limit,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load chat history")
		return
	}
	defer rows.Close()

	items := make([]gin.H, 0, limit)
	for rows.Next() {
		var id, message, reply string
		var isTranslation bool
		var createdAt time.Time
		if err := rows.Scan(&id, &message, &reply, &isTranslation, &createdAt); err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to parse chat history")
			return
		}
		items = append(items, gin.H{
			"id":             id,
			"message":        message,
			"reply":          reply,
			"is_translation": isTranslation,
			"created_at":     createdAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load chat history")
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": items})
}

func (a *App) clearChatHistory(c *gin.Context) {
	user, ok := authUserFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tag, err := a.db.Exec(
		c.Request.Context(),
		`DELETE FROM chat_history WHERE user_id = $1`,
		user.ID,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to clear chat history")
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": tag.RowsAffected()})
}
