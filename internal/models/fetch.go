package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultAttempts is the number of download tries before giving up.
const DefaultAttempts = 3

// Fetcher downloads files over HTTP with linear backoff between attempts.
type Fetcher struct {
	client    *http.Client
	logger    *slog.Logger
	attempts  int
	userAgent string
	// backoff returns the wait after failed attempt n (1-based).
	backoff func(n int) time.Duration
	wait    func(ctx context.Context, d time.Duration) error
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithAttempts sets the number of tries.
func WithAttempts(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithWait replaces the backoff sleep.
func WithWait(wait func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *Fetcher) { f.wait = wait }
}

// NewFetcher returns a fetcher using client, or a client with a generous
// timeout when nil.
func NewFetcher(client *http.Client, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f := &Fetcher{
		client:   client,
		logger:   logger,
		attempts: DefaultAttempts,
		backoff:  func(n int) time.Duration { return time.Duration(n) * time.Second },
		wait:     sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url to dest. The body is written to dest+".tmp" and renamed
// into place only after a complete transfer.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		lastErr = f.fetchOnce(ctx, url, dest)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("model download failed", "url", url, "attempt", attempt, "error", lastErr)
		if attempt == f.attempts {
			break
		}
		if err := f.wait(ctx, f.backoff(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("download %s: %d attempts failed: %w", url, f.attempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}

	tmp := dest + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
