package seed

import (
	"context"
	"fmt"

	"purchasedesk/internal/utils"
	"purchasedesk/pkg/types"
)

type RequestUpserter interface {
	UpsertRequest(ctx context.Context, request *types.Request) error
}

// DemoRequests are the purchase requests inserted by `purchasedesk seed`.
// IDs are fixed so re-running the seed updates rather than duplicates.
//
// To generate new IDs: `go run ./cmd/purchasedesk nanoid`
func DemoRequests() []*types.Request {
	return []*types.Request{
		{
			ID:           "Qv1xw7fHk2bT0aJ9mYcZ3nR5sLdE8uPg",
			Make:         "Volkswagen",
			Model:        "Golf VII 1.6 TDI",
			Year:         utils.IntPtr(2015),
			MileageKm:    utils.IntPtr(182000),
			Condition:    utils.StringPtr("runs, minor body damage on rear bumper"),
			ContactName:  utils.StringPtr("Martina Keller"),
			ContactEmail: utils.StringPtr("martina.keller@example.com"),
			ContactPhone: utils.StringPtr("+49 170 5550101"),
		},
		{
			ID:           "b8LrT3pWq6ZsN1cVx0yHj4KmA9dGf2Ue",
			Make:         "Toyota",
			Model:        "Yaris Hybrid",
			Year:         utils.IntPtr(2019),
			MileageKm:    utils.IntPtr(64000),
			Condition:    utils.StringPtr("good"),
			ContactName:  utils.StringPtr("Jonas Brandt"),
			ContactEmail: utils.StringPtr("jonas.brandt@example.com"),
		},
		{
			ID:           "Xn5Cq0Wm7Rk2Vb9Tz4Ls1Pd8Hf3Jg6Ya",
			Make:         "Ford",
			Model:        "Fiesta",
			Year:         utils.IntPtr(2008),
			MileageKm:    utils.IntPtr(241500),
			Condition:    utils.StringPtr("does not start, gearbox noise"),
			ContactName:  utils.StringPtr("Aylin Demir"),
			ContactPhone: utils.StringPtr("+49 151 5550199"),
		},
	}
}

func SeedRequests(ctx context.Context, repo RequestUpserter) error {
	for _, request := range DemoRequests() {
		if err := repo.UpsertRequest(ctx, request); err != nil {
			return fmt.Errorf("failed to seed request %s: %w", request.ID, err)
		}
	}

	return nil
}
