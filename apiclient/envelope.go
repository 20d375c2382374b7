package apiclient

import (
	"encoding/json"

	"github.com/ledgerline/go-invoicing-client/apierror"
)

// envelope is the uniform response wrapper used by every backend endpoint.
// Errors arrive as {success:false, error, details?}; successes as
// {success:true, data, message?}.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
}

// decodeEnvelope interprets a response body. For 2xx responses with a
// well-formed envelope it unmarshals data into out (out may be nil when
// the caller does not care about the payload). Anything else is normalized
// into an *apierror.APIError carrying the backend's message and details.
func decodeEnvelope(statusCode int, body []byte, out any) error {
	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			// Non-JSON body (proxy error page, empty 204). Status decides.
			if statusCode >= 200 && statusCode < 300 {
				return nil
			}
			return apierror.FromResponse(statusCode, "", nil)
		}
	}

	if statusCode >= 200 && statusCode < 300 && env.Success {
		if out == nil || len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apierror.FromResponse(statusCode, "malformed response payload", nil)
		}
		return nil
	}

	message := env.Error
	if message == "" {
		message = env.Message
	}
	return apierror.FromResponse(statusCode, message, env.Details)
}
