package music

import (
	"context"
	"fmt"
	"strings"
)

// FallbackRefiner produces a deterministic refinement without calling an
// LLM, so the service runs end to end with no provider credentials.
type FallbackRefiner struct{}

func (FallbackRefiner) Refine(_ context.Context, prompt string, seconds int) (string, string, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		trimmed = "the core theme"
	}

	refined := strings.Join([]string{
		fmt.Sprintf("Compose a %d-second cinematic chillstep hybrid inspired by %q.", seconds, trimmed),
		"Open with a mysterious ambient soundscape that swells into heroic orchestral themes with strings, brass, and taiko percussion.",
		"At the drop, blend shimmering synth arpeggios, side-chained kicks and snares, powerful sub-bass, and airy vocal chops.",
		"Close on a triumphant yet ethereal outro with lingering choir and evolving pads.",
	}, " ")

	return refined, "refine-fallback", nil
}

// PlaceholderGenerator returns a fixed track URL instead of rendering
// audio. Used when no generation provider is configured.
type PlaceholderGenerator struct {
	TrackURL string
}

const defaultPlaceholderURL = "https://example.com/placeholder-track.mp3"

func (g PlaceholderGenerator) Generate(ctx context.Context, _ string, _ int) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	url := g.TrackURL
	if url == "" {
		url = defaultPlaceholderURL
	}
	return url, "placeholder", nil
}

func (g PlaceholderGenerator) Status() GeneratorStatus {
	return GeneratorStatus{Mode: "placeholder", Ready: true}
}
