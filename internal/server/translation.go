package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
)

// translationOutcome is what the chat flow needs from one completion call.
// PronunciationHint is only meaningful for non-Latin-script targets.
type translationOutcome struct {
	Reply             string
	NativeText        string
	PronunciationHint string
	LanguageCode      string
	LanguageName      string
	CountryName       string
}

const conversationFallbackReply = "Hey! What's up?"

var (
	parenthesizedHint = regexp.MustCompile(`\(([^)]+)\)`)
	nonWordRunes      = regexp.MustCompile(`[^\w\s]`)
)

func buildTranslationSystemPrompt(phrase string, target languageRef, country string) string {
	return strings.Join([]string{
		"You are WanderBot, a friendly and warm travel buddy helping someone learn phrases abroad.",
		fmt.Sprintf("Translate the user's phrase to %s (%s).", target.Name, country),
		`Reply with a strict JSON object only: {"native":"<translation in native script>","romaji":"<latin-alphabet pronunciation>"}.`,
		"No markdown, no code fences, no extra text.",
		fmt.Sprintf("Phrase: %q", phrase),
	}, "\n")
}

func buildConversationSystemPrompt() string {
	return strings.Join([]string{
		"You are WanderBot, a fun, friendly, and knowledgeable travel companion.",
		"You help with translations, travel tips, food, culture, and greetings.",
		"Always be warm, excited, and helpful. Use emojis sometimes.",
	}, "\n")
}

// parseTranslationReply extracts (native text, pronunciation hint) from a
// completion answer. Accepted shapes, in order: the strict JSON object the
// prompt asks for, the legacy "(pronunciation) native-script" prose
// convention, and finally the first whitespace token stripped of
// punctuation. phrase is the identity fallback for whichever part is
// missing.
func parseTranslationReply(answer, phrase string) (native, hint string) {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return phrase, phrase
	}

	if candidate := extractJSONObject(trimmed); candidate != "" {
		var parsed struct {
			Native string `json:"native"`
			Romaji string `json:"romaji"`
		}
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && strings.TrimSpace(parsed.Native) != "" {
			native = strings.TrimSpace(parsed.Native)
			hint = strings.TrimSpace(parsed.Romaji)
			if hint == "" {
				hint = phrase
			}
			return native, hint
		}
	}

	if match := parenthesizedHint.FindStringSubmatch(trimmed); match != nil {
		hint = strings.TrimSpace(match[1])
		native = strings.TrimSpace(parenthesizedHint.ReplaceAllString(trimmed, ""))
		if native == "" {
			native = phrase
		}
		if hint == "" {
			hint = phrase
		}
		return native, hint
	}

	fields := strings.Fields(trimmed)
	hint = strings.TrimSpace(nonWordRunes.ReplaceAllString(fields[0], ""))
	if hint == "" {
		hint = phrase
	}
	return trimmed, hint
}

// extractJSONObject pulls the outermost {...} span out of an answer,
// tolerating code fences the model was told not to emit.
func extractJSONObject(answer string) string {
	candidate := strings.TrimSpace(answer)
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimSpace(strings.TrimPrefix(candidate, "```json"))
		candidate = strings.TrimSpace(strings.TrimPrefix(candidate, "```"))
		candidate = strings.TrimSpace(strings.TrimSuffix(candidate, "```"))
	}
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(candidate[start : end+1])
}

func formatTranslationReply(phrase, native, hint string, target languageRef) string {
	if needsPronunciationHint(target.Code) && hint != "" && hint != native {
		return fmt.Sprintf("In %s, %q is (%s) %s", target.Name, phrase, hint, native)
	}
	return fmt.Sprintf("In %s, %q is %q", target.Name, phrase, native)
}

// translatePhrase dispatches one low-temperature completion for a phrase.
// It never returns an error: any upstream failure degrades to an identity
// translation so the conversation is never interrupted.
func (a *App) translatePhrase(ctx context.Context, phrase string, target languageRef) translationOutcome {
	country := countryForLanguage(target)
	outcome := translationOutcome{
		LanguageCode: target.Code,
		LanguageName: target.Name,
		CountryName:  country,
	}

	response, err := a.ai.Query(ctx, AIModelRequest{
		Temperature:  a.cfg.TranslationTemp,
		SystemPrompt: buildTranslationSystemPrompt(phrase, target, country),
		UserPrompt:   phrase,
	})
	if err != nil {
		log.Printf("translation completion failed lang=%s err=%v", target.Code, err)
		outcome.NativeText = phrase
		outcome.PronunciationHint = phrase
		outcome.Reply = fmt.Sprintf("In %s, it's %q", target.Name, phrase)
		return outcome
	}

	native, hint := parseTranslationReply(response.Answer, phrase)
	outcome.NativeText = native
	outcome.PronunciationHint = hint
	outcome.Reply = formatTranslationReply(phrase, native, hint, target)
	return outcome
}

// converse dispatches one open-conversation completion. Failures degrade to
// a canned friendly reply, never an error.
func (a *App) converse(ctx context.Context, message string) string {
	response, err := a.ai.Query(ctx, AIModelRequest{
		Temperature:  a.cfg.ConversationTemp,
		SystemPrompt: buildConversationSystemPrompt(),
		UserPrompt:   message,
	})
	if err != nil {
		log.Printf("conversation completion failed err=%v", err)
		return conversationFallbackReply
	}
	answer := strings.TrimSpace(response.Answer)
	if answer == "" {
		return conversationFallbackReply
	}
	return answer
}
