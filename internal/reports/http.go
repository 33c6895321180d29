package reports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"compliance/internal/config"
	"compliance/internal/constants"
	"compliance/internal/logger"
	"compliance/pkg/retry"
)

const defaultMaxSize = 100 << 20

type HTTPStore struct {
	client  *http.Client
	sslOnly bool
	maxSize int64
	limiter *rate.Limiter
	policy  retry.Policy
	logger  logger.Logger
}

func NewHTTPStore(cfg config.ReportsConfig, log logger.Logger) *HTTPStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimitRPS > 0 {
		burst := int(cfg.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	policy := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialInterval > 0 {
		policy.InitialInterval = cfg.Retry.InitialInterval
	}
	if cfg.Retry.MaxInterval > 0 {
		policy.MaxInterval = cfg.Retry.MaxInterval
	}
	if cfg.Retry.Multiplier > 0 {
		policy.Multiplier = cfg.Retry.Multiplier
	}

	store := &HTTPStore{
		client:  &http.Client{Timeout: timeout},
		sslOnly: cfg.SSLOnly,
		maxSize: maxSize,
		limiter: limiter,
		policy:  policy,
		logger:  log,
	}
	store.client.CheckRedirect = store.checkRedirect
	return store
}

func (s *HTTPStore) Fetch(ctx context.Context, rawURL string) (Bundle, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, downloadError(rawURL, "invalid report URL: %v", err)
	}
	if err := s.checkScheme(u); err != nil {
		return nil, &DownloadError{URL: rawURL, Cause: err}
	}

	var body []byte
	err = retry.RetryWithCallback(ctx, s.policy, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.NewFatalError(err)
		}
		var fetchErr error
		body, fetchErr = s.get(ctx, rawURL)
		return fetchErr
	}, func(attempt int, err error, nextDelay time.Duration) {
		s.logger.WarnwCtx(ctx, "Retrying report download",
			"attempt", attempt,
			"next_delay", nextDelay,
			"url", redact(rawURL),
			"error", err,
		)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &DownloadError{URL: rawURL, Cause: err}
	}

	return unpackFrom(rawURL, body, s.maxSize)
}

func (s *HTTPStore) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, retry.NewFatalError(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) && errors.Is(ue.Err, errInsecureRedirect) {
			return nil, retry.NewFatalError(ue.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("report store returned %s", resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, retry.NewFatalError(fmt.Errorf("report store returned %s", resp.Status))
	}

	if resp.ContentLength > s.maxSize {
		return nil, retry.NewFatalError(fmt.Errorf("report size %d exceeds limit of %d bytes", resp.ContentLength, s.maxSize))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > s.maxSize {
		return nil, retry.NewFatalError(fmt.Errorf("report exceeds limit of %d bytes", s.maxSize))
	}

	return body, nil
}

var errInsecureRedirect = errors.New("refusing to follow redirect to a non-https URL")

func (s *HTTPStore) checkScheme(u *url.URL) error {
	if s.sslOnly && !strings.EqualFold(u.Scheme, "https") {
		return fmt.Errorf("only https report URLs are allowed, got %s", u.Scheme)
	}
	return nil
}

func (s *HTTPStore) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if s.checkScheme(req.URL) != nil {
		return errInsecureRedirect
	}
	return nil
}
