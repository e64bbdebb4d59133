package internal

import (
	"github.com/starford/cogninote/internal/knowledge"
	"github.com/starford/cogninote/internal/storage"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	knowledge knowledge.Service
	store     storage.Provider
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithKnowledge replaces the provider built from the knowledge config.
func WithKnowledge(k knowledge.Service) Option {
	return func(a *application) {
		a.knowledge = k
	}
}

// WithStore replaces the store opened from the store config. The
// application closes it on exit.
func WithStore(p storage.Provider) Option {
	return func(a *application) {
		a.store = p
	}
}
