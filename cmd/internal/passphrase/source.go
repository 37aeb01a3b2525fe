package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var (
	// ErrEmpty reports a passphrase that is blank once whitespace is trimmed.
	ErrEmpty = errors.New("passphrase is empty")
	// ErrNoTerminal reports that stdin cannot be used for an interactive prompt.
	ErrNoTerminal = errors.New("no terminal to prompt on")
)

// PromptFunc reads one secret after showing prompt to the operator.
type PromptFunc func(prompt string) ([]byte, error)

// Option adjusts how a Source resolves its secret.
type Option func(*Source)

// WithPrompt replaces the terminal prompt, mainly for tests and for callers
// that collect secrets through their own UI.
func WithPrompt(fn PromptFunc) Option {
	return func(s *Source) { s.prompt = fn }
}

// WithLookup replaces os.LookupEnv.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(s *Source) { s.lookup = fn }
}

// Source hands out a keystore passphrase taken from an environment variable,
// falling back to an operator prompt. Only a successful read is remembered, so
// a mistyped or cancelled prompt can be retried by calling Get again.
type Source struct {
	envVar string
	label  string
	lookup func(string) (string, bool)
	prompt PromptFunc

	mu     sync.Mutex
	secret string
	ready  bool
}

// NewSource builds a Source for the keystore called label that consults
// envVar first.
func NewSource(envVar, label string, opts ...Option) *Source {
	s := &Source{
		envVar: strings.TrimSpace(envVar),
		label:  strings.TrimSpace(label),
		lookup: os.LookupEnv,
		prompt: terminalPrompt,
	}
	if s.label == "" {
		s.label = "keystore"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the passphrase. Environment values are used verbatim.
func (s *Source) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return s.secret, nil
	}
	secret, err := s.resolve()
	if err != nil {
		return "", err
	}
	s.secret, s.ready = secret, true
	return secret, nil
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if v, ok := s.lookup(s.envVar); ok {
			if strings.TrimSpace(v) == "" {
				return "", fmt.Errorf("%w: %s is set to a blank value", ErrEmpty, s.envVar)
			}
			return v, nil
		}
	}
	raw, err := s.prompt(fmt.Sprintf("%s passphrase: ", s.label))
	if errors.Is(err, ErrNoTerminal) && s.envVar != "" {
		return "", fmt.Errorf("%s passphrase: export %s or run from a terminal: %w", s.label, s.envVar, err)
	}
	if err != nil {
		return "", fmt.Errorf("%s passphrase: %w", s.label, err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", fmt.Errorf("%s passphrase: %w", s.label, ErrEmpty)
	}
	return string(raw), nil
}

func terminalPrompt(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNoTerminal
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(fd)
}
