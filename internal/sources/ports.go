package sources

import (
	"context"

	"rewards/internal/core"
)

// Ports for the collections a report is computed from.
type (
	NominationLister interface {
		ListNominations(ctx context.Context) ([]core.Nomination, error)
	}

	RewardLister interface {
		ListRewards(ctx context.Context) ([]core.Reward, error)
	}

	CategoryLister interface {
		ListRewardCategories(ctx context.Context) ([]core.RewardCategory, error)
	}

	EmployeeLister interface {
		ListEmployees(ctx context.Context) ([]core.Employee, error)
	}

	// Source provides every collection needed by the reports pipeline.
	Source interface {
		NominationLister
		RewardLister
		CategoryLister
		EmployeeLister
	}
)
