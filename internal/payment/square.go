package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fishcharter/internal/config"
	"fishcharter/internal/domain"

	"github.com/rs/zerolog"
	square "github.com/square/square-go-sdk"
	squareclient "github.com/square/square-go-sdk/client"
	"github.com/square/square-go-sdk/core"
	"github.com/square/square-go-sdk/option"
)

const (
	squareSandboxURL    = "https://connect.squareupsandbox.com"
	squareProductionURL = "https://connect.squareup.com"
	squareAPIVersion    = "2024-01-18"
	squareCompleted     = "COMPLETED"
)

// Square charges cards through the Square Payments API.
type Square struct {
	client     *squareclient.Client
	baseURL    string
	locationID string
	logger     *zerolog.Logger
}

func NewSquare(cfg config.SquareConfig, httpClient *http.Client, logger *zerolog.Logger) *Square {
	base := cfg.BaseURL
	if base == "" {
		base = squareSandboxURL
		if cfg.Environment == "production" {
			base = squareProductionURL
		}
	}
	base = strings.TrimRight(base, "/")
	version := cfg.APIVersion
	if version == "" {
		version = squareAPIVersion
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// charges are not retried here; a failed attempt surfaces to the caller
	client := squareclient.NewClient(
		option.WithBaseURL(base),
		option.WithToken(cfg.AccessToken),
		option.WithHTTPClient(httpClient),
		option.WithMaxAttempts(1),
		&core.VersionOption{Version: version},
	)

	return &Square{
		client:     client,
		baseURL:    base,
		locationID: cfg.LocationID,
		logger:     nopIfNil(logger),
	}
}

func (s *Square) Name() string { return config.ProviderSquare }

func (s *Square) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	body := &square.CreatePaymentRequest{
		SourceID:       req.Token,
		IdempotencyKey: req.IdempotencyKey,
		AmountMoney: &square.Money{
			Amount:   square.Int64(req.Amount.Cents()),
			Currency: square.Currency(req.Currency).Ptr(),
		},
	}
	if req.Note != "" {
		body.Note = square.String(req.Note)
	}
	if req.BuyerEmail != "" {
		body.BuyerEmailAddress = square.String(req.BuyerEmail)
	}
	if s.locationID != "" {
		body.LocationID = square.String(s.locationID)
	}

	resp, err := s.client.Payments.Create(ctx, body)
	if err != nil {
		var apiErr *core.APIError
		if !errors.As(err, &apiErr) {
			return nil, fmt.Errorf("square request: %w", err)
		}
		msgs := squareErrorMessages(apiErr)
		if len(msgs) == 0 {
			return nil, fmt.Errorf("square http %d: %w", apiErr.StatusCode, err)
		}
		s.logger.Warn().Int("status", apiErr.StatusCode).Strs("errors", msgs).Msg("square payment declined")
		return nil, declined(msgs...)
	}

	if msgs := errorMessages(resp.Errors); len(msgs) > 0 {
		s.logger.Warn().Strs("errors", msgs).Msg("square payment declined")
		return nil, declined(msgs...)
	}
	if resp.Payment == nil {
		return nil, fmt.Errorf("square response without payment")
	}
	status := deref(resp.Payment.GetStatus())
	if status != squareCompleted {
		return nil, notCompleted(status)
	}

	return &domain.ChargeResult{PaymentID: deref(resp.Payment.GetID()), Status: status}, nil
}

// squareErrorMessages pulls the errors array out of a non-2xx body. Bodies
// that are not Square JSON yield nothing.
func squareErrorMessages(apiErr *core.APIError) []string {
	cause := apiErr.Unwrap()
	if cause == nil {
		return nil
	}
	var out square.CreatePaymentResponse
	if err := json.Unmarshal([]byte(cause.Error()), &out); err != nil {
		return nil
	}
	return errorMessages(out.Errors)
}

func errorMessages(errs []*square.Error) []string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		if e == nil {
			continue
		}
		if d := deref(e.GetDetail()); d != "" {
			msgs = append(msgs, d)
		} else {
			msgs = append(msgs, string(e.Code))
		}
	}
	return msgs
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
