package models

import "time"

// RadarReading is one decoded datagram, persisted regardless of
// violation status. (detection_time, radar_id, speed) is the natural
// key the ingest path dedupes on.
type RadarReading struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RadarID       int       `gorm:"column:radar_id;index:idx_readings_natural,unique" json:"radar_id"`
	Speed         int       `gorm:"column:speed;index:idx_readings_natural,unique" json:"speed"`
	SpeedLimit    int       `gorm:"column:speed_limit" json:"speed_limit"`
	DetectionTime time.Time `gorm:"column:detection_time;index:idx_readings_natural,unique" json:"detection_time"`
	IsViolation   bool      `gorm:"column:is_violation" json:"is_violation"`
	SourceFormat  string    `gorm:"column:source_format" json:"source_format"`
	SourceAddr    string    `gorm:"column:source_addr" json:"source_addr"`
	RawPayload    string    `gorm:"column:raw_payload" json:"raw_payload"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (RadarReading) TableName() string { return "radar_readings" }
