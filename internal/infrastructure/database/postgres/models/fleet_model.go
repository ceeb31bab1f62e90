package models

// FleetAssetModel is an externally registered vehicle. The engine only
// rewrites the equipment column during reconciliation.
type FleetAssetModel struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	Number    string `gorm:"column:number;type:text;not null;index"`
	Equipment string `gorm:"column:equipment;type:text"`
}

func (FleetAssetModel) TableName() string {
	return "fleet_assets"
}
