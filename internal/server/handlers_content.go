package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

// contentTable describes one admin-curated table. The CRUD handlers are
// generated from this list so the four content resources stay uniform.
type contentTable struct {
	slug    string
	name    string
	columns []string
}

var contentTables = []contentTable{
	{slug: "tips", name: "cultural_tips", columns: []string{"country", "tip", "etiquette"}},
	{slug: "phrases", name: "local_phrases", columns: []string{"language", "phrase", "translation"}},
	{slug: "destinations", name: "destinations", columns: []string{"name", "country", "language_code", "description"}},
	{slug: "languages", name: "languages", columns: []string{"code", "name", "country"}},
}

// tipFallbacks is the safety net when the database has no row for a
// country; same entries the product shipped with.
var tipFallbacks = map[string]string{
	"Korea":       "Use both hands when giving/receiving from elders.\nTurn your head when drinking with seniors.",
	"Japan":       "Bow to show respect — deeper = more polite.\nRemove shoes indoors. No tipping!",
	"Thailand":    "Never touch someone's head. Don't point feet at people. Wai greeting!",
	"Vietnam":     "Use both hands when giving/receiving. Smiling can mean embarrassment.",
	"Philippines": "Use 'po' and 'opo' with elders. 'Mano po' gesture = respect.",
	"France":      "Always say 'Bonjour' when entering a shop.",
	"Italy":       "No cappuccino after 11 AM. Dinner starts late.",
	"Spain":       "Dinner at 9–11 PM is normal. Two kisses greeting.",
	"Germany":     "Punctuality is everything. Direct communication.",
	"China":       "Red envelopes for gifts. Slurping = good!",
}

type tipLookupRequest struct {
	Country string `json:"country"`
}

func (a *App) lookupTip(c *gin.Context) {
	var payload tipLookupRequest
	if !mustJSON(c, &payload) {
		return
	}
	input := strings.TrimSpace(payload.Country)
	if input == "" {
		c.JSON(http.StatusOK, gin.H{"tip": nil})
		return
	}
	normalized := normalizeLanguageAlias(input)

	var tip, etiquette *string
	err := a.db.QueryRow(
		c.Request.Context(),
		`SELECT tip, etiquette
		 FROM cultural_tips
		 WHERE country ILIKE '%' || $1 || '%' OR country ILIKE '%' || $2 || '%'
		 LIMIT 1`,
		input,
		normalized,
	).Scan(&tip, &etiquette)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		// DB trouble degrades to the fallback table, same as a miss.
		tip = nil
	}

	if tip != nil && strings.TrimSpace(*tip) != "" {
		combined := strings.TrimSpace(*tip)
		if etiquette != nil && strings.TrimSpace(*etiquette) != "" {
			combined += "\n\n" + strings.TrimSpace(*etiquette)
		}
		c.JSON(http.StatusOK, gin.H{"tip": combined})
		return
	}

	for country, fallback := range tipFallbacks {
		key := strings.ToLower(country)
		if strings.Contains(normalized, key) || strings.Contains(key, normalized) {
			c.JSON(http.StatusOK, gin.H{"tip": fallback})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"tip": nil})
}

func (a *App) listPhrases(c *gin.Context) {
	language := strings.TrimSpace(c.Query("language"))

	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT id, language, phrase, translation
		 FROM local_phrases
		 WHERE $1 = '' OR language ILIKE $1
		 ORDER BY id`,
		language,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load phrases")
		return
	}
	defer rows.Close()

	items := make([]gin.H, 0, 32)
	for rows.Next() {
		var id int64
		var lang, phrase, translation string
		if err := rows.Scan(&id, &lang, &phrase, &translation); err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to parse phrases")
			return
		}
		items = append(items, gin.H{
			"id":          id,
			"language":    lang,
			"phrase":      phrase,
			"translation": translation,
		})
	}
	c.JSON(http.StatusOK, gin.H{"phrases": items})
}

func (a *App) listDestinations(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT id, name, country, language_code, COALESCE(description, '')
		 FROM destinations
		 ORDER BY id`,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load destinations")
		return
	}
	defer rows.Close()

	items := make([]gin.H, 0, 32)
	for rows.Next() {
		var id int64
		var name, country, languageCode, description string
		if err := rows.Scan(&id, &name, &country, &languageCode, &description); err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to parse destinations")
			return
		}
		items = append(items, gin.H{
			"id":            id,
			"name":          name,
			"country":       country,
			"language_code": languageCode,
			"description":   description,
		})
	}
	c.JSON(http.StatusOK, gin.H{"destinations": items})
}

func (a *App) listUsers(c *gin.Context) {
	rows, err := a.db.Query(
		c.Request.Context(),
		`SELECT id, email, role, created_at FROM users ORDER BY created_at`,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to load users")
		return
	}
	defer rows.Close()

	items := make([]gin.H, 0, 32)
	for rows.Next() {
		var id, email, role string
		var createdAt time.Time
		if err := rows.Scan(&id, &email, &role, &createdAt); err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to parse users")
			return
		}
		items = append(items, gin.H{
			"id":         id,
			"email":      email,
			"role":       role,
			"created_at": createdAt.UTC(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": items})
}

func (a *App) adminListContent(table contentTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := fmt.Sprintf(
			`SELECT id, %s FROM %s ORDER BY id`,
			strings.Join(table.columns, ", "),
			table.name,
		)
		rows, err := a.db.Query(c.Request.Context(), query)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to load "+table.slug)
			return
		}
		defer rows.Close()

		items := make([]gin.H, 0, 32)
		for rows.Next() {
			var id int64
			values := make([]*string, len(table.columns))
			dest := make([]any, 0, len(table.columns)+1)
			dest = append(dest, &id)
			for i := range values {
				dest = append(dest, &values[i])
			}
			if err := rows.Scan(dest...); err != nil {
				writeError(c, http.StatusInternalServerError, "Failed to parse "+table.slug)
				return
			}
			item := gin.H{"id": id}
			for i, column := range table.columns {
				if values[i] == nil {
					item[column] = ""
				} else {
					item[column] = *values[i]
				}
			}
			items = append(items, item)
		}
		c.JSON(http.StatusOK, gin.H{table.slug: items})
	}
}

func (a *App) adminCreateContent(table contentTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		values, ok := a.bindContentPayload(c, table)
		if !ok {
			return
		}

		placeholders := make([]string, len(table.columns))
		args := make([]any, len(table.columns))
		for i, column := range table.columns {
			placeholders[i] = "$" + strconv.Itoa(i+1)
			args[i] = values[column]
		}
		query := fmt.Sprintf(
			`INSERT INTO %s (%s) VALUES (%s) RETURNING id`,
			table.name,
			strings.Join(table.columns, ", "),
			strings.Join(placeholders, ", "),
		)

		var id int64
		if err := a.db.QueryRow(c.Request.Context(), query, args...).Scan(&id); err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to create "+table.slug)
			return
		}

		item := gin.H{"id": id}
		for column, value := range values {
			item[column] = value
		}
		c.JSON(http.StatusOK, item)
	}
}

func (a *App) adminUpdateContent(table contentTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := contentIDParam(c)
		if !ok {
			return
		}
		values, ok := a.bindContentPayload(c, table)
		if !ok {
			return
		}

		assignments := make([]string, len(table.columns))
		args := make([]any, 0, len(table.columns)+1)
		for i, column := range table.columns {
			assignments[i] = column + " = $" + strconv.Itoa(i+1)
			args = append(args, values[column])
		}
		args = append(args, id)
		query := fmt.Sprintf(
			`UPDATE %s SET %s WHERE id = $%d`,
			table.name,
			strings.Join(assignments, ", "),
			len(table.columns)+1,
		)

		tag, err := a.db.Exec(c.Request.Context(), query, args...)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to update "+table.slug)
			return
		}
		if tag.RowsAffected() == 0 {
			writeError(c, http.StatusNotFound, "No "+table.slug+" entry with this id")
			return
		}

		item := gin.H{"id": id}
		for column, value := range values {
			item[column] = value
		}
		c.JSON(http.StatusOK, item)
	}
}

func (a *App) adminDeleteContent(table contentTable) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := contentIDParam(c)
		if !ok {
			return
		}

		tag, err := a.db.Exec(
			c.Request.Context(),
			fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table.name),
			id,
		)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "Failed to delete "+table.slug)
			return
		}
		if tag.RowsAffected() == 0 {
			writeError(c, http.StatusNotFound, "No "+table.slug+" entry with this id")
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

// bindContentPayload accepts a flat JSON object and keeps only the table's
// declared columns; the first column is mandatory (it is the natural key
// of every content table).
func (a *App) bindContentPayload(c *gin.Context, table contentTable) (map[string]string, bool) {
	var raw map[string]any
	if !mustJSON(c, &raw) {
		return nil, false
	}
	values := make(map[string]string, len(table.columns))
	for _, column := range table.columns {
		values[column] = strings.TrimSpace(toString(raw[column]))
	}
	if values[table.columns[0]] == "" {
		writeError(c, http.StatusBadRequest, table.columns[0]+" is required")
		return nil, false
	}
	return values, true
}

func contentIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}
