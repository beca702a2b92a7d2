package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FixedPriceVerifier settles every well-formed payment reference at a fixed
// price. It stands in for an external payment processor.
type FixedPriceVerifier struct {
	price decimal.Decimal
}

// NewFixedPriceVerifier creates a verifier charging price per grant
func NewFixedPriceVerifier(price string) (*FixedPriceVerifier, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid access price %q: %w", price, err)
	}
	return &FixedPriceVerifier{price: p}, nil
}

// VerifyPayment implements PaymentVerifier
func (v *FixedPriceVerifier) VerifyPayment(ctx context.Context, paymentRef, walletID, requesterID string) (decimal.Decimal, error) {
	if len(strings.TrimSpace(paymentRef)) < 8 {
		return decimal.Zero, fmt.Errorf("payment reference %q is not recognized", paymentRef)
	}
	return v.price, nil
}
