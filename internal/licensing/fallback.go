package licensing

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// FallbackChecker consults the license server first and falls back to a
// signed offline activation file when the server is unreachable. Errors other
// than unavailability (a rejected signature, for instance) are never masked
// by the activation file.
type FallbackChecker struct {
	remote     Checker
	activation *ActivationVerifier
	now        func() time.Time
}

func NewFallbackChecker(remote Checker, activation *ActivationVerifier) *FallbackChecker {
	return &FallbackChecker{remote: remote, activation: activation, now: time.Now}
}

func (c *FallbackChecker) Check(ctx context.Context) (Status, error) {
	status, err := c.remote.Check(ctx)
	if err == nil {
		return status, nil
	}

	if c.activation == nil || !errors.Is(err, ErrCheckUnavailable) {
		return Status{}, err
	}

	slog.Warn("license server unreachable, using offline activation", "error", err)
	return c.activation.Status(c.now()), nil
}
