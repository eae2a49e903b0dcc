package models

import "time"

type Radar struct {
	RadarID    int       `gorm:"column:radar_id;primaryKey" json:"radar_id"`
	Name       string    `gorm:"column:name" json:"name"`
	Location   string    `gorm:"column:location" json:"location"`
	Status     string    `gorm:"column:status;default:active" json:"status"`
	SpeedLimit int       `gorm:"column:speed_limit" json:"speed_limit"`
	LastSeen   time.Time `gorm:"column:last_seen" json:"last_seen"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Radar) TableName() string { return "radars" }
