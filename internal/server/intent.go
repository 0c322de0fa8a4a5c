package server

import (
	"regexp"
	"strings"
	"sync"
)

type intentKind string

const (
	intentConversation        intentKind = "conversation"
	intentTranslation         intentKind = "translation"
	intentFollowupTranslation intentKind = "followup_translation"

	dialogueTopicTranslation = "translation"
)

// intentResult is the per-message classification. Phrase and LanguageAlias
// are only meaningful when Kind is not intentConversation.
type intentResult struct {
	Kind          intentKind
	Phrase        string
	LanguageAlias string
}

// dialogueState remembers the last translation context for a conversation
// key. LastTopic == dialogueTopicTranslation implies LastLanguage is set.
type dialogueState struct {
	LastLanguage string
	LastTopic    string
}

// DialogueMemory stores the last translation context per conversation key.
// Set overwrites any prior entry; concurrent writers for the same key are
// last-writer-wins, which is acceptable because no causal ordering is
// promised across concurrent messages from the same user.
type DialogueMemory interface {
	Get(key string) (dialogueState, bool)
	Set(key string, state dialogueState)
}

type memoryStore struct {
	mu     sync.RWMutex
	states map[string]dialogueState
}

func NewDialogueMemory() DialogueMemory {
	return &memoryStore{states: make(map[string]dialogueState)}
}

func (m *memoryStore) Get(key string) (dialogueState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[key]
	return state, ok
}

func (m *memoryStore) Set(key string, state dialogueState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = state
}

// translationPatterns are tried in order; the first full match wins. Order
// matters because the later patterns are generalizations of the earlier
// ones. Each pattern captures a quoted phrase and a trailing language name
// (up to two words), except the language-first form which captures them in
// reverse.
var translationPatterns = []struct {
	re        *regexp.Regexp
	langFirst bool
}{
	{re: regexp.MustCompile(`(?i)how.*?say.*?["']([^"']+)["'].*?(?:in|to)\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`)},
	{re: regexp.MustCompile(`(?i)what.*?is.*?["']([^"']+)["'].*?(?:in|to)\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`)},
	{re: regexp.MustCompile(`(?i)["']([^"']+)["'].*?(?:in|to)\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`)},
	{re: regexp.MustCompile(`(?i)(?:in|to)\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?).*?["']([^"']+)["']`), langFirst: true},
	{re: regexp.MustCompile(`(?i)translate\s+["']([^"']+)["'].*?(?:to|in)\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`)},
}

var (
	continuationMarker = regexp.MustCompile(`(?i)^(and|what about|how about|also|or|another one|what'?s)(\s+|$)`)
	trailingPunct      = regexp.MustCompile(`[?.!]+$`)
)

// classifyIntent decides whether a message is a fresh translation request,
// a follow-up that continues the prior translation topic, or general
// conversation. prior is the caller's dialogue state for the conversation
// key (the zero value means no state).
func classifyIntent(message string, prior dialogueState) intentResult {
	trimmed := strings.TrimSpace(message)

	for _, pattern := range translationPatterns {
		match := pattern.re.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		phrase, alias := match[1], match[2]
		if pattern.langFirst {
			phrase, alias = match[2], match[1]
		}
		phrase = strings.TrimSpace(phrase)
		alias = strings.TrimSpace(alias)
		if phrase == "" || alias == "" {
			continue
		}
		return intentResult{Kind: intentTranslation, Phrase: phrase, LanguageAlias: alias}
	}

	if marker := continuationMarker.FindString(trimmed); marker != "" &&
		prior.LastTopic == dialogueTopicTranslation {
		phrase := strings.TrimSpace(trimmed[len(marker):])
		phrase = trailingPunct.ReplaceAllString(phrase, "")
		phrase = strings.Trim(strings.TrimSpace(phrase), `"'`)
		if phrase != "" {
			alias := prior.LastLanguage
			if strings.TrimSpace(alias) == "" {
				alias = "english"
			}
			return intentResult{Kind: intentFollowupTranslation, Phrase: phrase, LanguageAlias: alias}
		}
	}

	return intentResult{Kind: intentConversation}
}

// resolveIntentLanguage resolves a matched alias, retrying with the first
// word when a two-word capture picked up a stray trailing token
// ("Japanese please").
func resolveIntentLanguage(alias string) languageRef {
	normalized := normalizeLanguageAlias(alias)
	if ref, ok := languageAliases[normalized]; ok {
		return ref
	}
	if first, _, found := strings.Cut(strings.TrimSpace(alias), " "); found {
		return resolveLanguage(first)
	}
	return englishFallback
}
