package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tieubaoca/lesson-rag/config"
	"github.com/tieubaoca/lesson-rag/types"
	"go.uber.org/zap"
)

// DownloadService fetches remote resources with retry, per-attempt timeout
// and a hard size limit.
type DownloadService struct {
	cfg     config.DownloadConfig
	client  *http.Client
	logger  *zap.Logger
	backoff func(attempt int) time.Duration
}

func NewDownloadService(cfg config.DownloadConfig, logger *zap.Logger) *DownloadService {
	return &DownloadService{
		cfg:     cfg,
		client:  &http.Client{},
		logger:  logger,
		backoff: backoffDelay,
	}
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return &types.DownloadError{
			Message: fmt.Sprintf("invalid URL format: %s", rawURL),
			URL:     rawURL,
			Cause:   err,
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &types.DownloadError{
			Message: fmt.Sprintf("invalid URL format: %s: only HTTP/HTTPS protocols are supported", rawURL),
			URL:     rawURL,
		}
	}
	return nil
}

// backoffDelay grows exponentially per attempt, capped at ten seconds.
func backoffDelay(attempt int) time.Duration {
	delayMs := 1000 * (1 << attempt)
	if delayMs > 10000 {
		delayMs = 10000
	}
	return time.Duration(delayMs) * time.Millisecond
}

// DownloadWithRetry fetches url, retrying transient failures with
// exponential backoff. An invalid scheme fails immediately without any
// network attempt; after maxRetries failed attempts the last underlying
// error is wrapped in a DownloadError.
func (s *DownloadService) DownloadWithRetry(ctx context.Context, rawURL string, opts *types.DownloadOptions) ([]byte, error) {
	maxRetries := s.cfg.MaxRetries
	timeout := time.Duration(s.cfg.TimeoutMs) * time.Millisecond
	userAgent := s.cfg.UserAgent
	if opts != nil {
		if opts.MaxRetries > 0 {
			maxRetries = opts.MaxRetries
		}
		if opts.TimeoutMs > 0 {
			timeout = time.Duration(opts.TimeoutMs) * time.Millisecond
		}
		if opts.UserAgent != "" {
			userAgent = opts.UserAgent
		}
	}

	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	maxBytes := int64(s.cfg.MaxFileSizeMB) << 20

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		s.logger.Info("attempting to download file",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries))

		data, err := s.downloadOnce(ctx, rawURL, userAgent, timeout, maxBytes)
		if err == nil {
			s.logger.Info("downloaded file",
				zap.String("url", rawURL),
				zap.Int("size_kb", len(data)/1024))
			return data, nil
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		delay := s.backoff(attempt)
		s.logger.Warn("download attempt failed, retrying",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, &types.DownloadError{
				Message: fmt.Sprintf("download of %s canceled", rawURL),
				URL:     rawURL,
				Cause:   ctx.Err(),
			}
		case <-time.After(delay):
		}
	}

	s.logger.Error("download failed after all retries",
		zap.String("url", rawURL),
		zap.Int("attempts", maxRetries),
		zap.Error(lastErr))

	return nil, &types.DownloadError{
		Message: fmt.Sprintf("failed to download %s after %d attempts", rawURL, maxRetries),
		URL:     rawURL,
		Cause:   lastErr,
	}
}

func (s *DownloadService) downloadOnce(ctx context.Context, rawURL, userAgent string, timeout time.Duration, maxBytes int64) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	if resp.ContentLength > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("file size (%.2fMB) exceeds limit of %dMB",
			float64(resp.ContentLength)/1024/1024, s.cfg.MaxFileSizeMB)
	}

	// Read one byte past the limit so an unreported oversize body fails
	// hard instead of being truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file size exceeds limit of %dMB", s.cfg.MaxFileSizeMB)
	}

	return data, nil
}

// DownloadMultiple fetches every URL, sequentially or concurrently depending
// on configuration, and returns the files base64-encoded in input order.
func (s *DownloadService) DownloadMultiple(ctx context.Context, urls []string) ([]types.DownloadedFile, error) {
	if !s.cfg.Parallel {
		results := make([]types.DownloadedFile, 0, len(urls))
		for _, u := range urls {
			data, err := s.DownloadWithRetry(ctx, u, nil)
			if err != nil {
				return nil, err
			}
			results = append(results, types.DownloadedFile{
				Data: base64.StdEncoding.EncodeToString(data),
				URL:  u,
			})
			s.logger.Info("downloaded file sequentially", zap.String("url", u))
		}
		return results, nil
	}

	s.logger.Info("downloading files in parallel", zap.Int("count", len(urls)))

	type indexedResult struct {
		index int
		file  types.DownloadedFile
		err   error
	}

	resultChan := make(chan indexedResult, len(urls))
	for i, u := range urls {
		go func(index int, downloadURL string) {
			data, err := s.DownloadWithRetry(ctx, downloadURL, nil)
			if err != nil {
				resultChan <- indexedResult{index: index, err: err}
				return
			}
			resultChan <- indexedResult{
				index: index,
				file: types.DownloadedFile{
					Data: base64.StdEncoding.EncodeToString(data),
					URL:  downloadURL,
				},
			}
		}(i, u)
	}

	results := make([]types.DownloadedFile, len(urls))
	var firstErr error
	for range urls {
		res := <-resultChan
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		results[res.index] = res.file
	}
	if firstErr != nil {
		return nil, firstErr
	}

	return results, nil
}
