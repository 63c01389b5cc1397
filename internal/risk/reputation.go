package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StaticReputation is a ReputationLookup backed by a fixed list of
// origin prefixes. Useful for tests and for operator-maintained block
// ranges without a network dependency.
type StaticReputation struct {
	prefixes []string
}

// NewStaticReputation returns a lookup that flags any origin starting
// with one of the given prefixes.
func NewStaticReputation(prefixes []string) *StaticReputation {
	return &StaticReputation{prefixes: prefixes}
}

// IsHighRisk implements ReputationLookup. It never fails.
func (s *StaticReputation) IsHighRisk(_ context.Context, origin string) (bool, error) {
	for _, p := range s.prefixes {
		if p != "" && strings.HasPrefix(origin, p) {
			return true, nil
		}
	}
	return false, nil
}

// HTTPReputation queries an external reputation service:
// GET {baseURL}?origin={origin} returning {"high_risk": bool}.
type HTTPReputation struct {
	baseURL string
	client  *http.Client
}

// NewHTTPReputation returns a lookup against baseURL with the given
// request timeout. The caller's context bounds each request as well.
func NewHTTPReputation(baseURL string, timeout time.Duration) *HTTPReputation {
	if timeout <= 0 {
		timeout = defaultLookupWait
	}
	return &HTTPReputation{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsHighRisk implements ReputationLookup.
func (h *HTTPReputation) IsHighRisk(ctx context.Context, origin string) (bool, error) {
	u := h.baseURL + "?origin=" + url.QueryEscape(origin)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("reputation: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		HighRisk bool `json:"high_risk"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.HighRisk, nil
}
