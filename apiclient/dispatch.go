package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ledgerline/go-invoicing-client/apierror"
)

const (
	contentTypeJSON     = "application/json"
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerIdempotency   = "Idempotency-Key"
	headerRequestID     = "X-Request-ID"
)

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient] marshal request body")
	}
	return payload, nil
}

// dispatch runs the per-request state machine:
//
//	send -> non-401, or plain client, or already retried: terminal
//	     -> 401 with a refresh token, not yet retried: refresh, mark the
//	        retry flag, resend once with the refreshed token
//	     -> 401 with no refresh token, or refresh failed: clear the store,
//	        fire the expiry callback, surface a session-expired error
//
// The retry flag is scoped to this call; one original request is replayed
// at most once no matter how its neighbours fare.
func (c *Client) dispatch(ctx context.Context, method, path string, body []byte, contentType string, out any, ro requestOptions) error {
	requestID := uuid.New().String()
	retried := false
	bearer := c.creds.Access()

	for {
		status, respBody, err := c.send(ctx, method, path, body, contentType, requestID, bearer, ro)
		c.metrics.ObserveRequest(method, status)
		if err != nil {
			return err
		}

		if status != http.StatusUnauthorized || c.refresher == nil {
			return decodeEnvelope(status, respBody, out)
		}

		// 401 on the interceptor path.
		if retried || c.creds.Refresh() == "" {
			return c.expire(requestID)
		}

		retried = true
		newToken, err := c.refresher.RefreshAccessToken(ctx)
		if err != nil {
			// The coordinator has already torn the credentials down and
			// signalled expiry; surface the terminal error only.
			c.logger.Debug().Str("request_id", requestID).Err(err).Msg("token refresh failed")
			return apierror.SessionExpired()
		}

		// Resend with the token the completed refresh produced, never one
		// captured before it.
		bearer = newToken
		c.logger.Debug().Str("request_id", requestID).Msg("retrying request with refreshed token")
	}
}

func (c *Client) expire(requestID string) error {
	c.creds.ClearAll()
	c.metrics.ObserveForcedExpiry()
	c.logger.Info().Str("request_id", requestID).Msg("session expired")
	if c.onExpired != nil {
		c.onExpired()
	}
	return apierror.SessionExpired()
}

// send performs one network exchange. A transport-level failure is
// returned as a wrapped error with no status; any HTTP response, success
// or not, is returned as (status, body, nil).
func (c *Client) send(ctx context.Context, method, path string, body []byte, contentType, requestID, bearer string, ro requestOptions) (int, []byte, error) {
	target := c.baseURL.JoinPath(path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return 0, nil, errors.Wrap(err, "[apiclient] build request")
	}

	if contentType != "" {
		req.Header.Set(headerContentType, contentType)
	}
	if bearer != "" {
		req.Header.Set(headerAuthorization, "Bearer "+bearer)
	}
	if ro.idempotencyKey != "" {
		req.Header.Set(headerIdempotency, ro.idempotencyKey)
	}
	req.Header.Set(headerRequestID, requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Str("request_id", requestID).Str("method", method).Str("path", path).Err(err).Msg("transport failure")
		return 0, nil, errors.Wrapf(err, "[apiclient] %s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "[apiclient] read response %s %s", method, path)
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request complete")

	return resp.StatusCode, respBody, nil
}
