// Package content provides the jokes and quotes served behind the paywall.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	// DefaultJokeAPIURL is the upstream dad joke service
	DefaultJokeAPIURL = "https://icanhazdadjoke.com/"
	// UserAgent identifies this service to the upstream API
	UserAgent = "Pay-Per-API Demo (https://github.com/lalitcap23/pay-per-api)"
	// FallbackJoke is served when the upstream is unreachable
	FallbackJoke = "Why did the programmer quit his job? He didn't get arrays! (Fallback joke)"

	freeJokeMessage = "This is a free joke! Upgrade to premium for better jokes 😄"
)

var freeJokes = []string{
	"Why did the programmer quit his job? He didn't get arrays!",
	"What do you call a programmer from Finland? Nerdic!",
	"How do you comfort a JavaScript bug? You console it!",
	"Why do programmers prefer dark mode? Because light attracts bugs!",
	"What's a programmer's favorite hangout place? Foo Bar!",
}

// Joke is the body of the paid jokes resource
type Joke struct {
	Joke      string    `json:"joke"`
	Timestamp time.Time `json:"timestamp"`
	Paid      bool      `json:"paid"`
}

// FreeJoke is the body of the free jokes endpoint
type FreeJoke struct {
	Joke      string    `json:"joke"`
	Timestamp time.Time `json:"timestamp"`
	Paid      bool      `json:"paid"`
	Message   string    `json:"message"`
}

// Jokes fetches dad jokes from an upstream API
type Jokes struct {
	url    string
	client *http.Client
	now    func() time.Time
	logger *slog.Logger
}

// JokesOption configures Jokes
type JokesOption func(*Jokes)

// WithJokeAPIURL overrides the upstream URL
func WithJokeAPIURL(url string) JokesOption {
	return func(j *Jokes) {
		j.url = url
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(client *http.Client) JokesOption {
	return func(j *Jokes) {
		j.client = client
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) JokesOption {
	return func(j *Jokes) {
		j.now = now
	}
}

// NewJokes creates a joke provider
func NewJokes(opts ...JokesOption) *Jokes {
	j := &Jokes{
		url:    DefaultJokeAPIURL,
		client: &http.Client{Timeout: 5 * time.Second},
		now:    time.Now,
		logger: slog.Default().With("component", "jokes"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Get returns a fresh joke, or FallbackJoke when the upstream fails.
// It never returns an error so a paid request always gets a joke.
func (j *Jokes) Get(ctx context.Context) (Joke, error) {
	text, err := j.fetch(ctx)
	if err != nil {
		j.logger.Warn("failed to fetch joke, serving fallback", "error", err)
		text = FallbackJoke
	}
	return Joke{Joke: text, Timestamp: j.now().UTC(), Paid: true}, nil
}

func (j *Jokes) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := j.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream returned %d", resp.StatusCode)
	}

	var out struct {
		Joke string `json:"joke"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode joke: %w", err)
	}
	if out.Joke == "" {
		return "", fmt.Errorf("upstream returned an empty joke")
	}
	return out.Joke, nil
}

// Free returns one of the built-in programming jokes
func Free(now time.Time) FreeJoke {
	return FreeJoke{
		Joke:      freeJokes[rand.IntN(len(freeJokes))],
		Timestamp: now.UTC(),
		Paid:      false,
		Message:   freeJokeMessage,
	}
}
