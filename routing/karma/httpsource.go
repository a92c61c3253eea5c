package karma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nexarouter/core/infrastructure/httputil"
)

// HTTPSource is the default Source (spec.md §4.6's "external service"):
// a GET to baseURL/<agent_id> expected to answer {"score": 0.0-1.0}.
// HTTP 4xx is classified Permanent (do not retry); everything else,
// including transport errors and 5xx, is Transient.
type HTTPSource struct {
	httpClient *http.Client
	baseURL    string
}

// NewHTTPSource builds an HTTPSource. baseURL is normalized and
// validated (scheme, host, no embedded user info; https always
// required); the agent ID is
// appended as a path segment on Fetch.
func NewHTTPSource(baseURL string, timeout time.Duration) (*HTTPSource, error) {
	normalized, _, err := httputil.NormalizeServiceBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("karma http source: %w", err)
	}
	return &HTTPSource{
		httpClient: httputil.CopyHTTPClientWithTimeout(nil, timeout, true),
		baseURL:    normalized,
	}, nil
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// httpStatusError carries the response status so Classify can tell
// client errors (do not retry) from transient ones.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return "karma source returned status " + strconv.Itoa(e.status)
}

// Fetch satisfies Source.
func (s *HTTPSource) Fetch(ctx context.Context, agentID string) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+agentID, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, &httpStatusError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	var parsed scoreResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("decode karma response: %w", err)
	}
	return parsed.Score, nil
}

// Classify satisfies Source: 4xx is Permanent, everything else
// (transport errors, 5xx) is Transient (spec.md §4.6).
func (s *HTTPSource) Classify(err error) Outcome {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.status >= 400 && statusErr.status < 500 {
		return OutcomePermanent
	}
	return OutcomeTransient
}
