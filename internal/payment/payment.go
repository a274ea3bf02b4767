// Package payment captures booking fees through the configured gateway.
package payment

import (
	"fmt"
	"net/http"
	"strings"

	"fishcharter/internal/config"
	"fishcharter/internal/domain"

	"github.com/rs/zerolog"
)

// DeclineError is a payment the gateway refused. Messages are shown to the customer.
type DeclineError struct {
	Messages []string
	// Status is set when the gateway returned a payment that is not completed.
	Status string
}

func (e *DeclineError) Error() string {
	return strings.Join(e.Messages, ", ")
}

func declined(msgs ...string) *DeclineError {
	return &DeclineError{Messages: msgs}
}

func notCompleted(status string) *DeclineError {
	return &DeclineError{Messages: []string{"Payment not completed: " + status}, Status: status}
}

// New returns the gateway selected by cfg.Provider.
func New(cfg config.PaymentConfig, logger *zerolog.Logger) (domain.PaymentGateway, error) {
	switch cfg.Provider {
	case config.ProviderSquare:
		return NewSquare(cfg.Square, &http.Client{Timeout: cfg.Timeout}, logger), nil
	case config.ProviderOmise:
		return NewOmise(cfg.Omise, logger)
	case config.ProviderSandbox:
		return NewSandbox(cfg.Sandbox, logger), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

func nopIfNil(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return logger
}
