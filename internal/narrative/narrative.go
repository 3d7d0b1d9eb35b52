package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"findash/internal/cache"
	"findash/internal/core"
)

// ErrNotConfigured is returned when no provider credential is set.
var ErrNotConfigured = errors.New("narrative generator not configured")

const (
	DefaultTTL     = time.Hour
	DefaultTimeout = 45 * time.Second
	memoSize       = 32
)

// Provider turns a prompt into prose.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Entry is one generated narrative.
type Entry struct {
	Key         string    `json:"key"`
	Text        string    `json:"text"`
	Provider    string    `json:"provider"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Store persists narratives across restarts.
type Store interface {
	LoadNarrative(ctx context.Context, key string) (Entry, bool, error)
	SaveNarrative(ctx context.Context, e Entry) error
}

// Result is what callers get back from Generate.
type Result struct {
	Entry
	Period []string `json:"period"`
	Cached bool     `json:"cached"`
}

// Service memoizes narratives per month selection.
type Service struct {
	provider Provider
	store    Store
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	memo     *cache.LRUCache[Entry]
	group    singleflight.Group

	mu         sync.Mutex
	forgotAt   time.Time
	generation uint64
}

type Option func(*Service)

func WithTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithStore adds a persistent second level below the in-memory memo.
func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service. A nil provider yields a Service whose
// Generate always fails with ErrNotConfigured.
func NewService(p Provider, opts ...Option) *Service {
	s := &Service{
		provider: p,
		ttl:      DefaultTTL,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.memo = cache.NewLRUCache[Entry](memoSize, s.ttl, cache.WithClock(s.now))
	return s
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool { return s != nil && s.provider != nil }

// Memo exposes the in-memory memo for periodic cleanup.
func (s *Service) Memo() *cache.LRUCache[Entry] { return s.memo }

// Generate returns the narrative for payload, keyed by key. A memoized entry
// younger than the TTL is returned without calling the provider.
func (s *Service) Generate(ctx context.Context, key string, payload core.InsightPayload) (Result, error) {
	if !s.Enabled() {
		return Result{}, ErrNotConfigured
	}
	res := Result{Period: payload.Period}
	if e, ok := s.memo.Get(key); ok {
		res.Entry, res.Cached = e, true
		return res, nil
	}
	if e, ok := s.loadStored(ctx, key); ok {
		s.memo.Set(key, e)
		res.Entry, res.Cached = e, true
		return res, nil
	}

	gen := s.currentGeneration()
	v, err, _ := s.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		return s.generate(ctx, key, gen, payload)
	})
	if err != nil {
		return Result{}, err
	}
	res.Entry = v.(Entry)
	return res, nil
}

func (s *Service) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Service) generate(ctx context.Context, key string, gen uint64, payload core.InsightPayload) (Entry, error) {
	prompt, err := Prompt(payload)
	if err != nil {
		return Entry{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	text, err := s.provider.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		slog.ErrorContext(ctx, "Narrative generation failed", "provider", s.provider.Name(), "error", err)
		return Entry{}, fmt.Errorf("generate narrative with %s: %w", s.provider.Name(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Entry{}, fmt.Errorf("generate narrative with %s: empty response", s.provider.Name())
	}

	e := Entry{Key: key, Text: text, Provider: s.provider.Name(), GeneratedAt: s.now()}
	s.mu.Lock()
	current := s.generation == gen
	if current {
		s.memo.Set(key, e)
	}
	s.mu.Unlock()
	if !current {
		// Forget ran while the provider was working; the caller still gets
		// the text but neither memo level keeps it.
		slog.InfoContext(ctx, "Narrative outdated by refresh, not memoized", "key", key)
		return e, nil
	}
	if s.store != nil {
		if err := s.store.SaveNarrative(ctx, e); err != nil {
			slog.WarnContext(ctx, "Failed to persist narrative", "key", key, "error", err)
		}
	}
	slog.InfoContext(ctx, "Narrative generated",
		"provider", e.Provider,
		"key", key,
		"chars", len(text),
		"duration", s.now().Sub(start))
	return e, nil
}

func (s *Service) loadStored(ctx context.Context, key string) (Entry, bool) {
	if s.store == nil {
		return Entry{}, false
	}
	e, ok, err := s.store.LoadNarrative(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read stored narrative", "key", key, "error", err)
		return Entry{}, false
	}
	if !ok || s.now().Sub(e.GeneratedAt) >= s.ttl {
		return Entry{}, false
	}
	s.mu.Lock()
	forgotAt := s.forgotAt
	s.mu.Unlock()
	if !e.GeneratedAt.After(forgotAt) {
		return Entry{}, false
	}
	return e, true
}

// Forget drops every memoized narrative and ignores stored entries generated
// up to now. It follows a data refresh.
func (s *Service) Forget() {
	if s == nil || s.memo == nil {
		return
	}
	s.mu.Lock()
	s.forgotAt = s.now()
	s.generation++
	s.mu.Unlock()
	s.memo.Clear()
}

// SystemPrompt constrains the model to the supplied figures.
const SystemPrompt = `You are a personal finance assistant writing a short summary of a household budget.
Use ONLY the numbers in the JSON payload you are given. Do not estimate, extrapolate or invent figures.
Amounts are in dollars. A positive variance means spending was over budget; a negative variance means under budget.
If a field is null or missing, do not mention it.
Write 3 to 5 sentences of plain prose without headings, lists or Markdown.`

// Prompt renders the user message for payload.
func Prompt(payload core.InsightPayload) (string, error) {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode insight payload: %w", err)
	}
	var b strings.Builder
	b.WriteString("Summarize the budget for ")
	if len(payload.Period) == 0 {
		b.WriteString("the whole period")
	} else {
		b.WriteString(strings.Join(payload.Period, ", "))
	}
	b.WriteString(" using only these facts:\n\n")
	b.Write(raw)
	b.WriteString("\n")
	return b.String(), nil
}
