package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fishcharter/internal/config"
	"fishcharter/internal/domain"

	"github.com/omise/omise-go"
	"github.com/omise/omise-go/operations"
	"github.com/rs/zerolog"
)

const (
	omiseSuccessful  = "successful"
	omiseAPIEndpoint = "https://api.omise.co"
)

type omiseChargeFunc func(ctx context.Context, op *operations.CreateCharge, idempotencyKey string) (*omise.Charge, error)

// Omise charges card tokens through the Omise API.
type Omise struct {
	charge omiseChargeFunc
	logger *zerolog.Logger
}

func NewOmise(cfg config.OmiseConfig, logger *zerolog.Logger) (*Omise, error) {
	if _, err := omise.NewClient(cfg.PublicKey, cfg.SecretKey); err != nil {
		return nil, fmt.Errorf("omise client: %w", err)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	// omise.Client carries its context as state, so each charge gets its own client
	charge := func(ctx context.Context, op *operations.CreateCharge, idempotencyKey string) (*omise.Charge, error) {
		c, err := omise.NewClient(cfg.PublicKey, cfg.SecretKey)
		if err != nil {
			return nil, err
		}
		c.WithContext(ctx)
		if idempotencyKey != "" {
			c.WithCustomHeaders(map[string]string{"Idempotency-Key": idempotencyKey})
		}
		if base != "" {
			c.Endpoints[omiseAPIEndpoint] = base
		}

		ch := &omise.Charge{}
		if err := c.Do(ch, op); err != nil {
			return nil, err
		}
		return ch, nil
	}

	return &Omise{charge: charge, logger: nopIfNil(logger)}, nil
}

func (o *Omise) Name() string { return config.ProviderOmise }

func (o *Omise) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	metadata := make(map[string]interface{}, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["idempotency_key"] = req.IdempotencyKey

	ch, err := o.charge(ctx, &operations.CreateCharge{
		Amount:      req.Amount.Cents(),
		Currency:    strings.ToLower(req.Currency),
		Card:        req.Token,
		Description: req.Note,
		Metadata:    metadata,
	}, req.IdempotencyKey)
	if err != nil {
		if e, ok := err.(*omise.Error); ok {
			o.logger.Warn().Str("code", e.Code).Msg("omise charge declined")
			return nil, declined(e.Message)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("omise charge: %w: %v", ctxErr, err)
		}
		return nil, fmt.Errorf("omise charge: %w", err)
	}
	return chargeResult(ch)
}

// chargeResult maps a returned Omise charge to a result or a decline.
func chargeResult(ch *omise.Charge) (*domain.ChargeResult, error) {
	status := string(ch.Status)
	if status == omiseSuccessful {
		return &domain.ChargeResult{PaymentID: ch.ID, Status: status}, nil
	}
	if ch.FailureMessage != nil && *ch.FailureMessage != "" {
		return nil, declined(*ch.FailureMessage)
	}
	return nil, notCompleted(strings.ToUpper(status))
}
