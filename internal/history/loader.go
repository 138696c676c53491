// Package history fetches the recent messages of a room over HTTP.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/omochice/chit-chat/internal/chat"
	"github.com/omochice/chit-chat/pkg/protocol"
)

// DefaultTimeout bounds one history request.
const DefaultTimeout = 5 * time.Second

// maxBody caps how much of a history response is read.
const maxBody = 1 << 20

var (
	// ErrStatus reports a non-2xx history response.
	ErrStatus = errors.New("unexpected history status")
	// ErrEmptyBody reports a response with no JSON array in it.
	ErrEmptyBody = errors.New("history response has no messages array")
)

// Loader performs the single history request of a session.
type Loader struct {
	base    string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

// WithTimeout bounds each request. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader for the HTTP base, for example http://localhost:8080.
func NewLoader(base string, opts ...Option) *Loader {
	l := &Loader{
		base:    base,
		client:  http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fetch returns the room history oldest-first as transcript entries. On any
// failure it returns an empty, non-nil slice together with the error.
func (l *Loader) Fetch(ctx context.Context, key chat.Key) ([]chat.Entry, error) {
	records, err := l.fetch(ctx, key)
	if err != nil {
		return []chat.Entry{}, err
	}
	entries := make([]chat.Entry, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		entries = append(entries, chat.MessageEntry(records[i].Sender, records[i].Content))
	}
	l.logger.Debug("history loaded", zap.Stringer("key", key), zap.Int("entries", len(entries)))
	return entries, nil
}

func (l *Loader) fetch(ctx context.Context, key chat.Key) ([]protocol.HistoryRecord, error) {
	target, err := URL(l.base, key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build history request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, ErrEmptyBody
	}

	var records []protocol.HistoryRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if records == nil {
		return nil, ErrEmptyBody
	}
	return records, nil
}

// URL builds <base>/history?username=<identity>&room=<room>.
func URL(base string, key chat.Key) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid history base %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return "", fmt.Errorf("invalid history base %q: scheme must be http or https", base)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/history"
	q := url.Values{}
	q.Set("username", string(key.Identity()))
	q.Set("room", string(key.Room()))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
