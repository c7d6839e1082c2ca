package openai

import (
	"context"
	"io"
	"net/http"
	"time"
)

const (
	retryMaxAttempts = 10
	retryBaseDelay   = 2 * time.Second
	retryMaxDelay    = 60 * time.Second
)

// retryTransport retries failed round trips with exponential backoff. Retry
// policy lives here, at the transport layer, so callers never see transient
// provider hiccups and never roll their own retry loops. The request timeout
// applies per attempt: a whole-exchange timeout on the http.Client would
// expire mid-schedule, since the cumulative backoff alone outlasts any
// single-request budget.
type retryTransport struct {
	next           http.RoundTripper
	maxAttempts    int
	baseDelay      time.Duration
	attemptTimeout time.Duration
}

func newRetryTransport(next http.RoundTripper, attemptTimeout time.Duration) *retryTransport {
	return &retryTransport{
		next:           next,
		maxAttempts:    retryMaxAttempts,
		baseDelay:      retryBaseDelay,
		attemptTimeout: attemptTimeout,
	}
}

// RoundTrip implements http.RoundTripper
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	delay := t.baseDelay
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(delay)
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()
			case <-timer.C:
			}

			delay *= 2
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}
		}

		attemptReq := req
		cancel := func() {}
		if t.attemptTimeout > 0 {
			var actx context.Context
			actx, cancel = context.WithTimeout(req.Context(), t.attemptTimeout)
			attemptReq = req.Clone(actx)
		}

		if attempt > 1 {
			// Rewind the body for the retry; requests built from a
			// bytes.Reader always carry GetBody.
			if req.GetBody != nil {
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					cancel()
					return resp, err
				}
				attemptReq.Body = body
			}
		}

		resp, err = t.next.RoundTrip(attemptReq)
		if err != nil {
			cancel()
			if req.Context().Err() != nil {
				// Caller gone, stop the schedule
				return nil, req.Context().Err()
			}
			continue
		}
		if !retryableStatus(resp.StatusCode) {
			return deferCancel(resp, cancel), nil
		}

		// Drain so the connection can be reused, then retry
		if attempt < t.maxAttempts {
			resp.Body.Close()
			cancel()
		} else {
			resp = deferCancel(resp, cancel)
		}
	}

	return resp, err
}

// deferCancel keeps the attempt context alive until the caller has read the
// body, then releases it on Close.
func deferCancel(resp *http.Response, cancel context.CancelFunc) *http.Response {
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// retryableStatus reports whether a response is worth retrying
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
