// Package music defines the paid-work collaborator boundary: refining a
// prompt and generating a track. The payment core depends only on the
// interfaces here, keeping it testable without network calls.
package music

import (
	"context"
	"fmt"
	"strings"

	"github.com/audiomint/tunegate/types"
)

// PromptRefiner rewrites a raw prompt into a production-ready music
// description for the requested duration.
type PromptRefiner interface {
	Refine(ctx context.Context, prompt string, seconds int) (refined string, model string, err error)
}

// TrackGenerator renders a track and returns a URL for it.
type TrackGenerator interface {
	Generate(ctx context.Context, prompt string, seconds int) (trackURL string, provider string, err error)
	// Status reports readiness for the health endpoint.
	Status() GeneratorStatus
}

// GeneratorStatus describes a generator's configuration mode.
type GeneratorStatus struct {
	Mode       string `json:"mode"` // "live" or "placeholder"
	Ready      bool   `json:"ready"`
	MaxSeconds int    `json:"maxSeconds,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Service performs the paid work exactly once per validated request.
type Service struct {
	refiner   PromptRefiner
	generator TrackGenerator
}

func NewService(refiner PromptRefiner, generator TrackGenerator) *Service {
	return &Service{refiner: refiner, generator: generator}
}

// Run refines then generates. Both steps honour ctx cancellation.
func (s *Service) Run(ctx context.Context, input types.MusicInput) (*types.MusicOutput, string, error) {
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, "", fmt.Errorf("prompt cannot be empty")
	}

	refined, model, err := s.refiner.Refine(ctx, prompt, input.Seconds)
	if err != nil {
		return nil, "", fmt.Errorf("refine prompt: %w", err)
	}

	trackURL, provider, err := s.generator.Generate(ctx, refined, input.Seconds)
	if err != nil {
		return nil, "", fmt.Errorf("generate track: %w", err)
	}

	if model == "" {
		model = provider
	}

	return &types.MusicOutput{
		TrackUrl:      trackURL,
		RefinedPrompt: refined,
	}, model, nil
}

func (s *Service) GeneratorStatus() GeneratorStatus {
	return s.generator.Status()
}
