package models

// SystemStatusModel is the single toggle row gating the sync loop. It is
// mutated by operators through the admin API, only observed by the engine.
type SystemStatusModel struct {
	ID              int64 `gorm:"column:id;primaryKey;autoIncrement:false"`
	EnableSync      bool  `gorm:"column:enable_sync;not null;default:false"`
	EnableReconcile bool  `gorm:"column:enable_reconcile;not null;default:false"`
	Maintenance     bool  `gorm:"column:maintenance;not null;default:false"`
}

func (SystemStatusModel) TableName() string {
	return "system_status"
}
