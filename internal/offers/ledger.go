package offers

import (
	"context"
	"errors"
	"strings"
	"time"

	"purchasedesk/internal/utils"
	"purchasedesk/pkg/types"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type Repository interface {
	CreateOffer(ctx context.Context, offer *types.OfferRecord) error
	UpdateOffer(ctx context.Context, offerID string, columns map[string]any) (*types.OfferRecord, error)
	DeleteOffer(ctx context.Context, offerID string) error
	OffersByRequestID(ctx context.Context, requestID string) ([]*types.OfferRecord, error)
}

type RequestFinder interface {
	Request(ctx context.Context, requestID string) (*types.Request, error)
}

// Ledger records partner offers. Updates are field level: only the supplied
// fields are written.
type Ledger struct {
	requests RequestFinder
	repo     Repository
	validate *validator.Validate
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewLedger(requests RequestFinder, repo Repository, logger logrus.FieldLogger) *Ledger {
	return &Ledger{
		requests: requests,
		repo:     repo,
		validate: utils.NewValidator(),
		logger:   logger.WithField("component", "offers"),
		now:      time.Now,
	}
}

func (l *Ledger) Add(ctx context.Context, requestID string, input *types.OfferInput) (*types.OfferRecord, error) {
	if input == nil {
		return nil, types.InvalidInputf("offer is required")
	}

	if err := l.check(input); err != nil {
		return nil, err
	}

	if input.Price.IsNegative() {
		return nil, types.InvalidInputf("price must not be negative")
	}

	if _, err := l.requests.Request(ctx, requestID); err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	offerDate := l.now().UTC()
	if input.OfferDate != nil {
		offerDate = input.OfferDate.UTC()
	}

	offer := &types.OfferRecord{
		ID:          utils.NanoID(),
		RequestID:   requestID,
		Description: input.Description,
		Price:       input.Price,
		OfferDate:   offerDate,
	}

	if err := l.repo.CreateOffer(ctx, offer); err != nil {
		return nil, types.StoreError(err, "create offer")
	}

	l.logger.WithField("request_id", requestID).WithField("offer_id", offer.ID).Info("offer added")

	return offer, nil
}

func (l *Ledger) Update(ctx context.Context, offerID string, patch *types.OfferPatch) (*types.OfferRecord, error) {
	if patch == nil || patch.Empty() {
		return nil, types.InvalidInputf("at least one field must be supplied")
	}

	if err := l.check(patch); err != nil {
		return nil, err
	}

	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return nil, types.InvalidInputf("description must not be blank")
	}

	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, types.InvalidInputf("price must not be negative")
	}

	if patch.OfferDate != nil {
		date := patch.OfferDate.UTC()
		patch.OfferDate = &date
	}

	offer, err := l.repo.UpdateOffer(ctx, offerID, patch.Columns())
	if err != nil {
		return nil, types.StoreError(err, "update offer")
	}

	return offer, nil
}

func (l *Ledger) Delete(ctx context.Context, offerID string) error {
	if err := l.repo.DeleteOffer(ctx, offerID); err != nil {
		return types.StoreError(err, "delete offer")
	}

	l.logger.WithField("offer_id", offerID).Info("offer deleted")

	return nil
}

// ListByRequest returns offers newest first.
func (l *Ledger) ListByRequest(ctx context.Context, requestID string) ([]*types.OfferRecord, error) {
	if _, err := l.requests.Request(ctx, requestID); err != nil {
		return nil, types.StoreError(err, "fetch request")
	}

	offers, err := l.repo.OffersByRequestID(ctx, requestID)
	if err != nil {
		return nil, types.StoreError(err, "list offers")
	}

	return offers, nil
}

func (l *Ledger) check(v any) error {
	err := l.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return types.InvalidInputf("%s failed %s validation", verrs[0].Field(), verrs[0].Tag())
	}

	return types.InvalidInputf("%s", err.Error())
}
