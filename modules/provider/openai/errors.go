package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v3"

	"github.com/flemzord/scout/internal/provider"
)

// mapError maps an SDK error to a provider sentinel error. Context errors
// pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}

	msg := apiErr.Message
	switch code := apiErr.StatusCode; {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", provider.ErrAuthentication, msg)
	case code == http.StatusBadRequest && isContextLength(apiErr):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrProviderDown, code, msg)
	default:
		return fmt.Errorf("provider.openai: HTTP %d: %w", code, err)
	}
}

func isContextLength(e *sdk.Error) bool {
	text := strings.ToLower(e.Code + " " + e.Message)
	return strings.Contains(text, "context_length") || strings.Contains(text, "context window")
}
