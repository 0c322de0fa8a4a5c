package server

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Domskk/wanderworks/internal/config"
)

type failingAIClient struct{}

func (failingAIClient) Query(context.Context, AIModelRequest) (AIModelResponse, error) {
	return AIModelResponse{}, errors.New("upstream unreachable")
}

type scriptedAIClient struct {
	answer string
	last   AIModelRequest
}

func (s *scriptedAIClient) Query(_ context.Context, req AIModelRequest) (AIModelResponse, error) {
	s.last = req
	return AIModelResponse{Answer: s.answer, Model: "scripted"}, nil
}

func newTranslationTestApp(ai AIClient) *App {
	cfg := config.Config{
		TranslationTemp:  0.3,
		ConversationTemp: 0.9,
	}
	return NewWithClients(cfg, nil, ai, NewDialogueMemory())
}

func TestParseTranslationReplyStrictJSON(t *testing.T) {
	native, hint := parseTranslationReply(`{"native":"ありがとう","romaji":"arigatou"}`, "thank you")
	if native != "ありがとう" {
		t.Fatalf("unexpected native text: %q", native)
	}
	if hint != "arigatou" {
		t.Fatalf("unexpected hint: %q", hint)
	}
}

func TestParseTranslationReplyFencedJSON(t *testing.T) {
	answer := "```json\n{\"native\":\"안녕하세요\",\"romaji\":\"annyeonghaseyo\"}\n```"
	native, hint := parseTranslationReply(answer, "hello")
	if native != "안녕하세요" || hint != "annyeonghaseyo" {
		t.Fatalf("unexpected parse of fenced JSON: native=%q hint=%q", native, hint)
	}
}

func TestParseTranslationReplyParenthesizedConvention(t *testing.T) {
	native, hint := parseTranslationReply(`(annyeonghaseyo) 안녕하세요`, "hello")
	if hint != "annyeonghaseyo" {
		t.Fatalf("expected parenthesized hint, got %q", hint)
	}
	if native != "안녕하세요" {
		t.Fatalf("expected native script remainder, got %q", native)
	}
}

func TestParseTranslationReplyFirstTokenFallback(t *testing.T) {
	native, hint := parseTranslationReply(`gracias, amigo!`, "thank you")
	if native != "gracias, amigo!" {
		t.Fatalf("expected full reply as native text, got %q", native)
	}
	if hint != "gracias" {
		t.Fatalf("expected first token stripped of punctuation, got %q", hint)
	}
}

func TestParseTranslationReplyEmptyIsIdentity(t *testing.T) {
	native, hint := parseTranslationReply("  ", "thank you")
	if native != "thank you" || hint != "thank you" {
		t.Fatalf("expected identity fallback, got native=%q hint=%q", native, hint)
	}
}

func TestTranslatePhraseIdentityFallbackOnUpstreamFailure(t *testing.T) {
	app := newTranslationTestApp(failingAIClient{})

	outcome := app.translatePhrase(context.Background(), "thank you", languageRef{Code: "ja", Name: "Japanese"})
	if outcome.NativeText != "thank you" {
		t.Fatalf("expected identity native text, got %q", outcome.NativeText)
	}
	if outcome.PronunciationHint != "thank you" {
		t.Fatalf("expected identity hint, got %q", outcome.PronunciationHint)
	}
	if outcome.LanguageCode != "ja" || outcome.LanguageName != "Japanese" {
		t.Fatalf("expected language metadata to survive failure, got %+v", outcome)
	}
	if outcome.CountryName != "Japan" {
		t.Fatalf("expected Japan, got %q", outcome.CountryName)
	}
	if !strings.Contains(outcome.Reply, "thank you") {
		t.Fatalf("fallback reply must echo the phrase, got %q", outcome.Reply)
	}
}

func TestTranslatePhraseUsesLowTemperature(t *testing.T) {
	scripted := &scriptedAIClient{answer: `{"native":"ありがとう","romaji":"arigatou"}`}
	app := newTranslationTestApp(scripted)

	outcome := app.translatePhrase(context.Background(), "thank you", languageRef{Code: "ja", Name: "Japanese"})
	if scripted.last.Temperature != 0.3 {
		t.Fatalf("expected translation temperature 0.3, got %v", scripted.last.Temperature)
	}
	if !strings.Contains(scripted.last.SystemPrompt, "Japanese") {
		t.Fatalf("system prompt must name the target language: %q", scripted.last.SystemPrompt)
	}
	if outcome.PronunciationHint != "arigatou" {
		t.Fatalf("expected romaji hint, got %q", outcome.PronunciationHint)
	}
	if !strings.Contains(outcome.Reply, "(arigatou) ありがとう") {
		t.Fatalf("expected hint-first reply formatting, got %q", outcome.Reply)
	}
}

func TestConverseFallsBackToCannedReply(t *testing.T) {
	app := newTranslationTestApp(failingAIClient{})
	if got := app.converse(context.Background(), "hello"); got != conversationFallbackReply {
		t.Fatalf("expected canned fallback, got %q", got)
	}
}

func TestConverseUsesHigherTemperature(t *testing.T) {
	scripted := &scriptedAIClient{answer: "Tokyo is amazing in spring!"}
	app := newTranslationTestApp(scripted)

	got := app.converse(context.Background(), "tell me about Tokyo")
	if got != "Tokyo is amazing in spring!" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if scripted.last.Temperature != 0.9 {
		t.Fatalf("expected conversation temperature 0.9, got %v", scripted.last.Temperature)
	}
}
