package music

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultElevenLabsURL   = "https://api.elevenlabs.io/v1/music/generate"
	defaultElevenLabsModel = "eleven_music_v1"
	elevenLabsTimeout      = 120 * time.Second
)

// ElevenLabsGenerator renders tracks through the ElevenLabs music API.
type ElevenLabsGenerator struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	modelID    string
	maxSeconds int
}

// ElevenLabsConfig configures the live generator.
type ElevenLabsConfig struct {
	APIURL     string
	APIKey     string
	ModelID    string
	MaxSeconds int
}

func NewElevenLabsGenerator(cfg ElevenLabsConfig, httpClient *http.Client) *ElevenLabsGenerator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: elevenLabsTimeout}
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultElevenLabsURL
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultElevenLabsModel
	}
	if cfg.MaxSeconds <= 0 {
		cfg.MaxSeconds = 90
	}
	return &ElevenLabsGenerator{
		httpClient: httpClient,
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		modelID:    cfg.ModelID,
		maxSeconds: cfg.MaxSeconds,
	}
}

type elevenLabsRequest struct {
	Prompt       string `json:"prompt"`
	ModelID      string `json:"model_id"`
	DurationSecs int    `json:"music_length_seconds"`
}

type elevenLabsResponse struct {
	URL      string `json:"url"`
	AudioURL string `json:"audio_url"`
	Detail   struct {
		Message string `json:"message"`
	} `json:"detail"`
}

func (g *ElevenLabsGenerator) Generate(ctx context.Context, prompt string, seconds int) (string, string, error) {
	if g.apiKey == "" {
		return "", "", fmt.Errorf("elevenlabs api key not configured")
	}
	if seconds > g.maxSeconds {
		seconds = g.maxSeconds
	}

	raw, err := json.Marshal(elevenLabsRequest{
		Prompt:       prompt,
		ModelID:      g.modelID,
		DurationSecs: seconds,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(raw))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("xi-api-key", g.apiKey)

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", "", err
	}

	var parsed elevenLabsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", fmt.Errorf("elevenlabs returned unparseable body (status %d)", res.StatusCode)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := parsed.Detail.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", res.StatusCode)
		}
		return "", "", fmt.Errorf("elevenlabs generation failed: %s", msg)
	}

	trackURL := parsed.URL
	if trackURL == "" {
		trackURL = parsed.AudioURL
	}
	if trackURL == "" {
		return "", "", fmt.Errorf("elevenlabs response missing track url")
	}

	return trackURL, "elevenlabs/" + g.modelID, nil
}

func (g *ElevenLabsGenerator) Status() GeneratorStatus {
	status := GeneratorStatus{
		Mode:       "live",
		Ready:      g.apiKey != "",
		MaxSeconds: g.maxSeconds,
	}
	if g.apiKey == "" {
		status.Message = "ELEVENLABS_API_KEY missing while generator mode is live"
	}
	return status
}
