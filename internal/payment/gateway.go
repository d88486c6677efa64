package payment

import (
	"context"
	"fmt"
	"strconv"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"
	"go.uber.org/zap"

	customError "github.com/loanflow/loan-engine/pkg/errors"
)

// Gateway verifies that a provider payment actually settled before the
// fee is marked paid. The service never initiates payments; borrowers
// pay through the provider's checkout redirect and come back with a
// payment id.
type Gateway interface {
	VerifyPayment(ctx context.Context, paymentID string) (transactionRef string, err error)
}

const statusApproved = "approved"

type MercadoPagoGateway struct {
	client   mppayment.Client
	mockMode bool
	logger   *zap.Logger
}

func NewMercadoPagoGateway(accessToken string, mockMode bool, logger *zap.Logger) (*MercadoPagoGateway, error) {
	if mockMode {
		logger.Info("payment gateway running in mock mode")
		return &MercadoPagoGateway{mockMode: true, logger: logger}, nil
	}

	cfg, err := mpconfig.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercado pago config: %w", err)
	}

	return &MercadoPagoGateway{
		client: mppayment.NewClient(cfg),
		logger: logger,
	}, nil
}

// VerifyPayment fetches the payment from the provider and accepts it
// only when its status is approved. The transaction reference stored on
// the application is the provider payment id.
func (g *MercadoPagoGateway) VerifyPayment(ctx context.Context, paymentID string) (string, error) {
	if g.mockMode {
		g.logger.Debug("mock payment verification", zap.String("payment_id", paymentID))
		return paymentID, nil
	}

	id, err := strconv.Atoi(paymentID)
	if err != nil {
		return "", customError.WrapPaymentNotApproved(paymentID, "invalid payment id")
	}

	resp, err := g.client.Get(ctx, id)
	if err != nil {
		g.logger.Warn("payment lookup failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return "", err
	}

	if resp.Status != statusApproved {
		return "", customError.WrapPaymentNotApproved(paymentID, resp.Status)
	}

	return strconv.FormatInt(int64(resp.ID), 10), nil
}
