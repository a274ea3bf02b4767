package payment

import (
	"context"

	"fishcharter/internal/config"
	"fishcharter/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sandbox approves every token except the configured decline tokens.
type Sandbox struct {
	decline map[string]struct{}
	logger  *zerolog.Logger
}

func NewSandbox(cfg config.SandboxConfig, logger *zerolog.Logger) *Sandbox {
	decline := make(map[string]struct{}, len(cfg.DeclineTokens))
	for _, t := range cfg.DeclineTokens {
		decline[t] = struct{}{}
	}
	return &Sandbox{decline: decline, logger: nopIfNil(logger)}
}

func (s *Sandbox) Name() string { return config.ProviderSandbox }

func (s *Sandbox) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := s.decline[req.Token]; ok {
		s.logger.Info().Str("amount", req.Amount.String()).Msg("sandbox payment declined")
		return nil, declined("Card declined")
	}
	id := "sandbox-" + uuid.NewString()
	s.logger.Info().Str("payment_id", id).Str("amount", req.Amount.String()).Msg("sandbox payment captured")
	return &domain.ChargeResult{PaymentID: id, Status: "COMPLETED"}, nil
}
