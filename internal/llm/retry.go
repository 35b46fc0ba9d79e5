package llm

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// defaultBackOff is the wait policy between attempts.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// isTransient reports whether a failed call is worth retrying: network
// errors, timeouts, rate limiting and server errors.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	if code, ok := statusCode(err); ok {
		return code == http.StatusTooManyRequests || code >= 500
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// statusCode extracts the HTTP status of a backend error, if it has one.
func statusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}

// retry runs op until it succeeds, fails permanently, the retry budget is
// spent or ctx ends. It returns the number of attempts made.
func retry(ctx context.Context, maxRetries int, policy backoff.BackOff, provider string, op func(context.Context) (*Reply, error)) (*Reply, int, error) {
	attempts := 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxRetries)), ctx)

	reply, err := backoff.RetryNotifyWithData[*Reply](func() (*Reply, error) {
		attempts++
		reply, err := op(ctx)
		if err != nil && !isTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return reply, err
	}, b, func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("provider", provider).
			Int("attempt", attempts).
			Dur("wait", wait).
			Msg("transient provider error, retrying")
	})
	return reply, attempts, err
}
