// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"log/slog"

	"github.com/poiesic/stratum/ai"
)

// Provider bundles the embedding and generation clients of one
// configuration. When both point at the same host they draw from a single
// request limiter.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	generator *Generator
	logger    *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider) error

// WithLogger sets the logger used by the provider and its clients.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "openai-provider")
		p.embedder.logger = logger.With("component", "openai-embedder")
		p.generator.logger = logger.With("component", "openai-generator")
		return nil
	}
}

// NewProvider validates and normalizes config, then builds the clients.
// It returns the ai.AIProvider interface so callers stay independent of
// this package.
func NewProvider(config *ai.Config, opts ...ProviderOption) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	generator, err := newGenerator(config)
	if err != nil {
		return nil, err
	}

	shared := config.EmbeddingHost == config.GeneratorHost && embedder.limiter != nil
	if shared {
		generator.limiter = embedder.limiter
	}

	p := &Provider{
		config:    config,
		embedder:  embedder,
		generator: generator,
		logger:    slog.Default().With("component", "openai-provider"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	p.logger.Debug("provider ready",
		"embedding_model", config.EmbeddingModel,
		"generator_model", config.GeneratorModel,
		"requests_per_second", config.RequestsPerSecond,
		"shared_limiter", shared)
	return p, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close is a no-op; the langchaingo clients hold no resources.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider", "generator_model", p.config.GeneratorModel)
	return nil
}
