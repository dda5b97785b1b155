package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gatherly/event-chat/internal/core/domain"
	"github.com/gatherly/event-chat/internal/core/ports"
)

// HTTPChecker asks the ticketing platform whether a participant holds a
// ticket for the event behind a room. Anything but 200 means no entry.
type HTTPChecker struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ ports.EntitlementChecker = (*HTTPChecker)(nil)

// NewHTTPChecker creates a checker against the given entitlement service URL.
func NewHTTPChecker(baseURL string, logger *slog.Logger) *HTTPChecker {
	return &HTTPChecker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger.With("component", "entitlement_checker"),
	}
}

// CanJoin checks room entry with the entitlement service.
func (c *HTTPChecker) CanJoin(ctx context.Context, roomID string, participant domain.Participant) (bool, error) {
	url := fmt.Sprintf("%s/v1/rooms/%s/entitlements/%s", c.baseURL, roomID, participant.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("entitlement request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("entitlement check: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusForbidden, http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("entitlement service returned status %d", resp.StatusCode)
	}
}

// AllowAll admits everyone. Used in development when no entitlement service
// is configured.
type AllowAll struct{}

var _ ports.EntitlementChecker = AllowAll{}

func (AllowAll) CanJoin(context.Context, string, domain.Participant) (bool, error) {
	return true, nil
}
