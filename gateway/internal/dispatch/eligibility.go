package dispatch

import (
	"context"
	"errors"

	"github.com/leadgate/leadgate/gateway/internal/models"
	"github.com/leadgate/leadgate/gateway/internal/repository"
)

// Eligibility decides whether a batch lead should be delivered to a driver.
type Eligibility interface {
	NeedToProcess(ctx context.Context, lead *models.Lead, driver string) (bool, error)
}

// EligibilityFunc adapts a function to Eligibility.
type EligibilityFunc func(ctx context.Context, lead *models.Lead, driver string) (bool, error)

func (f EligibilityFunc) NeedToProcess(ctx context.Context, lead *models.Lead, driver string) (bool, error) {
	return f(ctx, lead, driver)
}

// ProcessAll delivers every lead to every driver.
var ProcessAll = EligibilityFunc(func(context.Context, *models.Lead, string) (bool, error) {
	return true, nil
})

// SkipExcluded honours the lead's own exclusion list.
var SkipExcluded = EligibilityFunc(func(_ context.Context, lead *models.Lead, driver string) (bool, error) {
	return !lead.Excludes(driver), nil
})

// SkipDelivered skips leads whose request row for the driver is already
// terminal (success or failed). Missing rows and retry rows are processed.
func SkipDelivered(repo repository.RequestRepository) Eligibility {
	return EligibilityFunc(func(ctx context.Context, lead *models.Lead, driver string) (bool, error) {
		req, err := repo.GetRequest(ctx, lead.ID, driver)
		if errors.Is(err, repository.ErrRequestNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return !req.Status.Terminal(), nil
	})
}

// AllOf requires every predicate to agree. It stops at the first refusal or error.
func AllOf(preds ...Eligibility) Eligibility {
	return EligibilityFunc(func(ctx context.Context, lead *models.Lead, driver string) (bool, error) {
		for _, p := range preds {
			ok, err := p.NeedToProcess(ctx, lead, driver)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}
