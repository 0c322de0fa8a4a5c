package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Domskk/wanderworks/internal/config"
)

const geoUserAgent = "wanderworks-travel-app"

type geoPlace struct {
	Country     string
	CountryCode string
	DisplayName string
}

// GeoClient wraps the Nominatim reverse-geocoding endpoint.
type GeoClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewGeoClient(cfg config.Config) *GeoClient {
	timeoutSeconds := cfg.GeoTimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &GeoClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.NominatimBaseURL), "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

func (g *GeoClient) Reverse(ctx context.Context, lat, lon float64) (geoPlace, error) {
	if strings.TrimSpace(g.baseURL) == "" {
		return geoPlace{}, errors.New("NOMINATIM_BASE_URL is not configured")
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", fmt.Sprintf("%f", lat))
	query.Set("lon", fmt.Sprintf("%f", lon))
	query.Set("addressdetails", "1")

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		g.baseURL+"/reverse?"+query.Encode(),
		nil,
	)
	if err != nil {
		return geoPlace{}, err
	}
	request.Header.Set("User-Agent", geoUserAgent)
	request.Header.Set("Accept-Language", "en")

	response, err := g.httpClient.Do(request)
	if err != nil {
		return geoPlace{}, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return geoPlace{}, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return geoPlace{}, fmt.Errorf("nominatim error (%d)", response.StatusCode)
	}

	parsed := parseJSONStringMap(body)
	address, _ := parsed["address"].(map[string]any)

	place := geoPlace{
		Country:     strings.TrimSpace(toString(address["country"])),
		CountryCode: strings.ToUpper(strings.TrimSpace(toString(address["country_code"]))),
		DisplayName: strings.TrimSpace(toString(parsed["display_name"])),
	}
	return place, nil
}

// TranslateClient wraps the MyMemory translation endpoint.
type TranslateClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTranslateClient(cfg config.Config) *TranslateClient {
	timeoutSeconds := cfg.GeoTimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &TranslateClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.MyMemoryBaseURL), "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

// Translate returns text unchanged on any failure; this collaborator is
// identity-fallback by contract.
func (t *TranslateClient) Translate(ctx context.Context, text, source, target string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.TrimSpace(t.baseURL) == "" {
		return text
	}
	if strings.TrimSpace(source) == "" {
		source = "en"
	}

	query := url.Values{}
	query.Set("q", trimmed)
	query.Set("langpair", source+"|"+target)

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		t.baseURL+"/get?"+query.Encode(),
		nil,
	)
	if err != nil {
		return text
	}

	response, err := t.httpClient.Do(request)
	if err != nil {
		return text
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil || response.StatusCode < 200 || response.StatusCode >= 300 {
		return text
	}

	parsed := parseJSONStringMap(body)
	responseData, _ := parsed["responseData"].(map[string]any)
	translated := strings.TrimSpace(toString(responseData["translatedText"]))
	if translated == "" {
		return text
	}
	return translated
}
