package doctor

import (
	"context"
	"fmt"
)

// IntegrityChecker verifies the local database file.
type IntegrityChecker interface {
	Integrity(ctx context.Context) error
}

// ExpirySweeper reports and removes expired cache entries.
type ExpirySweeper interface {
	CountExpired(ctx context.Context) (int64, error)
	SweepExpired(ctx context.Context) (int64, error)
}

// StoreCheck inspects the local SQLite store.
type StoreCheck struct {
	db IntegrityChecker
	kv ExpirySweeper
}

// NewStoreCheck creates a store check.
func NewStoreCheck(db IntegrityChecker, kv ExpirySweeper) *StoreCheck {
	return &StoreCheck{db: db, kv: kv}
}

func (c *StoreCheck) Name() string {
	return "Local Store"
}

func (c *StoreCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	result.Items = append(result.Items, c.integrity(ctx))

	n, err := c.kv.CountExpired(ctx)
	switch {
	case err != nil:
		result.Items = append(result.Items, CheckItem{
			Label:  "expired entries",
			Status: StatusFail,
			Detail: err.Error(),
		})
	case n > 0:
		result.Items = append(result.Items, CheckItem{
			Label:   "expired entries",
			Status:  StatusWarn,
			Detail:  fmt.Sprintf("%d waiting to be swept", n),
			Fixable: true,
		})
	default:
		result.Items = append(result.Items, CheckItem{
			Label:  "expired entries",
			Status: StatusPass,
			Detail: "none",
		})
	}

	return result
}

// Fix sweeps expired entries.
func (c *StoreCheck) Fix(ctx context.Context) Result {
	result := Result{Name: c.Name()}
	result.Items = append(result.Items, c.integrity(ctx))

	n, err := c.kv.SweepExpired(ctx)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "expired entries",
			Status: StatusFail,
			Detail: fmt.Sprintf("sweep failed: %v", err),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  "expired entries",
		Status: StatusPass,
		Detail: fmt.Sprintf("swept %d", n),
	})
	return result
}

func (c *StoreCheck) integrity(ctx context.Context) CheckItem {
	if err := c.db.Integrity(ctx); err != nil {
		return CheckItem{Label: "database", Status: StatusFail, Detail: err.Error()}
	}
	return CheckItem{Label: "database", Status: StatusPass, Detail: "ok"}
}
