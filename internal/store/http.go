package store

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

	"castplayd/internal/config"
	"castplayd/internal/logger"
)

// HTTPStore reads recordings from a static origin: <base>/<id>.cast for content and
// <base>/index.json (a JSON array of ids) for listing. It cannot write.
type HTTPStore struct {
	httpClient *http.Client
	logger     logger.Logger
	base       string
	userAgent  string
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
}

// NewHTTPStore creates a store for the origin at cfg.BaseURL.
func NewHTTPStore(cfg config.HTTPStoreConfig, log logger.Logger) *HTTPStore {
	transport := &http.Transport{
		ResponseHeaderTimeout: 3 * time.Second,
	}
	s := &HTTPStore{
		httpClient: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:     logger.OrNop(log),
		base:       strings.TrimRight(cfg.BaseURL, "/") + "/",
		userAgent:  cfg.UserAgent,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		timeout:    cfg.Timeout,
	}
	if s.retries < 1 {
		s.retries = 1
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	return s
}

func (s *HTTPStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.fetch(ctx, id+fileExt)
}

func (s *HTTPStore) List(ctx context.Context) ([]string, error) {
	data, err := s.fetch(ctx, "index.json")
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode origin index: %w", err)
	}
	valid := ids[:0]
	for _, id := range ids {
		if ValidID(id) {
			valid = append(valid, id)
		}
	}
	return valid, nil
}

func (s *HTTPStore) Put(context.Context, string, []byte) error { return ErrReadOnly }

func (s *HTTPStore) Delete(context.Context, string) error { return ErrReadOnly }

func (s *HTTPStore) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// fetch downloads name relative to the origin with retries. A 404 is final.
func (s *HTTPStore) fetch(ctx context.Context, name string) ([]byte, error) {
	target := s.base + url.PathEscape(name)
	var lastErr error

	for attempt := 1; attempt <= s.retries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}

		s.logger.Debugf("Fetching %s (Attempt %d/%d)", target, attempt, s.retries)
		data, err := s.fetchOnce(ctx, target)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		lastErr = fmt.Errorf("fetch attempt %d failed for %s: %w", attempt, target, err)
		s.logger.Warnf("%v", lastErr)
	}

	return nil, fmt.Errorf("failed to fetch %s after %d attempts: %w", target, s.retries, lastErr)
}

func (s *HTTPStore) fetchOnce(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.do(ctx, target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusMovedPermanently {
		location, err := resp.Location()
		if err != nil {
			return nil, fmt.Errorf("redirect location error: %w", err)
		}
		s.logger.Debugf("Redirected to: %s", location)

		resp, err = s.do(ctx, location.String())
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("received non-200 status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed while reading body: %w", err)
	}
	return data, nil
}

func (s *HTTPStore) do(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	return s.httpClient.Do(req)
}
