package cli

import (
	"errors"
	"log/slog"

	"github.com/roach88/cora/internal/config"
	"github.com/roach88/cora/internal/constancy"
	"github.com/roach88/cora/internal/contingency"
	"github.com/roach88/cora/internal/guardian"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/niches"
	"github.com/roach88/cora/internal/ritual"
	"github.com/roach88/cora/internal/store"
)

// env is everything a command needs: configuration, lexicon, an open
// store, and the clock and ID source.
type env struct {
	opts  *RootOptions
	cfg   config.Config
	lex   *lexicon.Lexicon
	store *store.Store
	clock ritual.Clock
	ids   ritual.IDGenerator
}

// loadConfig resolves the config file and lexicon flags.
func loadConfig(opts *RootOptions) (config.Config, *lexicon.Lexicon, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return config.Config{}, nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if opts.Lexicon != "" {
		cfg.Lexicon = opts.Lexicon
	}

	lex, err := cfg.LoadLexicon()
	if err != nil {
		return config.Config{}, nil, WrapExitError(ExitCommandError, "failed to load lexicon", err)
	}
	return cfg, lex, nil
}

// openEnv loads configuration and opens the database.
// The caller must call close.
func openEnv(opts *RootOptions) (*env, error) {
	cfg, lex, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	slog.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	e := &env{
		opts:  opts,
		cfg:   cfg,
		lex:   lex,
		store: st,
		clock: opts.Clock,
		ids:   opts.IDs,
	}
	if e.clock == nil {
		e.clock = ritual.SystemClock{}
	}
	if e.ids == nil {
		e.ids = ritual.UUIDv7Generator{}
	}
	return e, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// visitor returns the visitor ID, or an error when --visitor is missing.
func (e *env) visitor() (string, error) {
	if e.opts.Visitor == "" {
		return "", NewExitError(ExitCommandError, "visitor required: pass --visitor (create one with `cora visitor`)")
	}
	return e.opts.Visitor, nil
}

func (e *env) guardian(visitor string) *guardian.Guardian {
	return guardian.New(e.store.Scope(visitor), e.lex, e.clock, e.cfg.Ritual)
}

func (e *env) constancy(visitor string) *constancy.Tracker {
	return constancy.New(e.store.Scope(visitor), e.lex, e.clock, e.cfg.Constancy)
}

func (e *env) niches() *niches.Service {
	return niches.New(e.store.Scope(e.cfg.SharedScope), e.lex, e.clock, e.ids, e.cfg.Niches)
}

func (e *env) contingency() *contingency.Protocol {
	return contingency.New(e.store.Scope(e.cfg.SharedScope), e.niches(), e.clock, e.ids, e.cfg.Contingency)
}

// commandError maps domain errors to exit codes: an ineligible visitor is
// a ritual failure, anything else a command error.
func commandError(message string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if errors.Is(err, niches.ErrNotEligible) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}
