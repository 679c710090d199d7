package types

import (
	"context"
	"time"
)

// BaseModel is a base model for all domain models that need to be persisted
// in the database. Livemode separates production billing records from test
// records and must never mix.
type BaseModel struct {
	Status    Status     `db:"status" json:"status"`
	Livemode  bool       `db:"livemode" json:"livemode"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedBy string     `db:"created_by" json:"created_by"`
	UpdatedBy string     `db:"updated_by" json:"updated_by"`
}

func GetDefaultBaseModel(ctx context.Context, livemode bool) BaseModel {
	now := time.Now().UTC()
	return BaseModel{
		Status:    StatusPublished,
		Livemode:  livemode,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: GetActorID(ctx),
		UpdatedBy: GetActorID(ctx),
	}
}

// IsDeleted reports whether the row is soft-deleted
func (m BaseModel) IsDeleted() bool {
	return m.Status == StatusDeleted || m.DeletedAt != nil
}
