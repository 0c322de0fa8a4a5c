package server

import (
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

type geoCodeRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type contextReplyRequest struct {
	Message     string `json:"message"`
	TargetLang  string `json:"target_lang"`
	CountryCode string `json:"country_code"`
}

// scenarioEntry is one canned situational reply; the first matching
// scenario wins.
type scenarioEntry struct {
	name  string
	re    *regexp.Regexp
	reply string
}

var contextScenarios = []scenarioEntry{
	{name: "greeting", re: regexp.MustCompile(`(?i)hi|hello|hey`), reply: "Hello! How can I help you?"},
	{name: "airport", re: regexp.MustCompile(`(?i)where.*(gate|exit)|how.*get`), reply: "Follow the signs to Gate B12."},
	{name: "restaurant", re: regexp.MustCompile(`(?i)restaurant|food|hungry|menu`), reply: "Try the local paella!"},
	{name: "taxi", re: regexp.MustCompile(`(?i)taxi|cab|ride`), reply: "To the station, please."},
	{name: "emergency", re: regexp.MustCompile(`(?i)help|police|hospital`), reply: "Call 112 for emergencies."},
}

const contextDefaultReply = "Tell me more about your trip!"

func (a *App) reverseGeocode(c *gin.Context) {
	var payload geoCodeRequest
	if !mustJSON(c, &payload) {
		return
	}
	if payload.Lat == nil || payload.Lon == nil {
		writeError(c, http.StatusBadRequest, "lat and lon are required")
		return
	}

	place, err := a.geo.Reverse(c.Request.Context(), *payload.Lat, *payload.Lon)
	if err != nil {
		log.Printf("reverse geocode failed lat=%f lon=%f err=%v", *payload.Lat, *payload.Lon, err)
		writeError(c, http.StatusBadGateway, "Reverse geocoding failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"country":      place.Country,
		"country_code": place.CountryCode,
		"display_name": place.DisplayName,
	})
}

func (a *App) translateText(c *gin.Context) {
	var payload translateRequest
	if !mustJSON(c, &payload) {
		return
	}
	text := strings.TrimSpace(payload.Text)
	target := strings.TrimSpace(payload.Target)
	if text == "" || target == "" {
		writeError(c, http.StatusBadRequest, "text and target are required")
		return
	}

	translated := a.translator.Translate(c.Request.Context(), text, payload.Source, target)
	c.JSON(http.StatusOK, gin.H{
		"text":       text,
		"translated": translated,
		"target":     target,
	})
}

// contextReply matches a message against the canned scenario table and
// translates the reply into the caller's language when it isn't English.
func (a *App) contextReply(c *gin.Context) {
	var payload contextReplyRequest
	if !mustJSON(c, &payload) {
		return
	}
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		writeError(c, http.StatusBadRequest, "message is required")
		return
	}

	targetLang := strings.ToLower(strings.TrimSpace(payload.TargetLang))
	if targetLang == "" {
		targetLang = "en"
	}

	reply := contextDefaultReply
	scenario := ""
	for _, entry := range contextScenarios {
		if entry.re.MatchString(message) {
			reply = entry.reply
			scenario = entry.name
			break
		}
	}

	if targetLang != "en" {
		reply = a.translator.Translate(c.Request.Context(), reply, "en", targetLang)
	}

	if scenario != "" && strings.TrimSpace(payload.CountryCode) != "" {
		log.Printf(
			"context reply served scenario=%s lang=%s country=%s",
			scenario,
			targetLang,
			strings.ToUpper(strings.TrimSpace(payload.CountryCode)),
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"reply":    reply,
		"scenario": scenario,
	})
}
