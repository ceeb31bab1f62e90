package models

// CacheDeviceModel holds the canonical device columns shared by every
// provider cache table. One row per external id, replace-on-write.
type CacheDeviceModel struct {
	ExternalID     int64   `gorm:"column:external_id;primaryKey;autoIncrement:false"`
	UID            int64   `gorm:"column:uid;not null;default:0"`
	Name           string  `gorm:"column:name;type:text;not null;index"`
	PosX           float64 `gorm:"column:pos_x;default:0"`
	PosY           float64 `gorm:"column:pos_y;default:0"`
	GPSQuality     int     `gorm:"column:gps;default:0"`
	LastMessageAt  int64   `gorm:"column:last_time;default:0"`
	LastPositionAt int64   `gorm:"column:last_pos_time;default:0"`
	Connected      bool    `gorm:"column:connected;default:false"`
	Commands       string  `gorm:"column:cmd;type:text"`
	Sensors        string  `gorm:"column:sens;type:text"`
	ValidNav       bool    `gorm:"column:valid_nav;default:false"`
	Linked         bool    `gorm:"column:linked;default:false"`
	PIN            int64   `gorm:"column:pin;default:0"`
	VIN            string  `gorm:"column:vin;type:text"`
	DeviceType     string  `gorm:"column:device_type;type:text"`
	RegisteredAt   int64   `gorm:"column:registered_at;default:0"`
}

type WialonCacheModel struct {
	CacheDeviceModel `gorm:"embedded"`
}

func (WialonCacheModel) TableName() string {
	return "cache_wialon"
}

type CesarCacheModel struct {
	CacheDeviceModel `gorm:"embedded"`
}

func (CesarCacheModel) TableName() string {
	return "cache_cesar"
}

type AxentaCacheModel struct {
	CacheDeviceModel `gorm:"embedded"`
}

func (AxentaCacheModel) TableName() string {
	return "cache_axenta"
}
