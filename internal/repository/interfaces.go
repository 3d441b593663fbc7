package repository

import (
	"analytics/internal/model"
)

// AlertRepository defines the interface for stored alert operations.
type AlertRepository interface {
	// Create operations
	Insert(alert *model.StoredAlert) (int64, error)

	// Read operations
	List(limit int) ([]model.StoredAlert, error)
	Stats() (*model.AlertStats, error)

	// Delete operations
	Prune(keep int) (int64, error)
}
