package models

// HistoryModel is one append-only position observation. Rows are never
// updated or deleted by the engine.
type HistoryModel struct {
	ID         int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Provider   string  `gorm:"column:provider;type:varchar(32);not null;index:idx_history_identity,priority:1"`
	UID        int64   `gorm:"column:uid;not null;default:0;index:idx_history_identity,priority:2"`
	Name       string  `gorm:"column:name;type:text;not null;index:idx_history_identity,priority:3"`
	PosX       float64 `gorm:"column:pos_x;default:0"`
	PosY       float64 `gorm:"column:pos_y;default:0"`
	ObservedAt int64   `gorm:"column:observed_at;not null;default:0"`
}

func (HistoryModel) TableName() string {
	return "cache_history"
}
