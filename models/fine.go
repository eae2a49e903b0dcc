package models

import "time"

const (
	FineStatusPending   = "pending"
	FineStatusProcessed = "processed"

	UnknownPlate = "UNKNOWN"
)

// Fine is the persisted outcome of a correlated violation. Later
// status transitions (paid, cancelled) belong to the business layer.
type Fine struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CorrelationID string    `gorm:"column:correlation_id;uniqueIndex" json:"correlation_id"`
	RadarID       int       `gorm:"column:radar_id;index" json:"radar_id"`
	PlateNumber   string    `gorm:"column:plate_number" json:"plate_number"`
	Speed         int       `gorm:"column:speed" json:"speed"`
	SpeedLimit    int       `gorm:"column:speed_limit" json:"speed_limit"`
	FineAmount    float64   `gorm:"column:fine_amount" json:"fine_amount"`
	ImagePath     string    `gorm:"column:image_path" json:"image_path"`
	Status        string    `gorm:"column:status;default:pending" json:"status"`
	ViolationTime time.Time `gorm:"column:violation_time" json:"violation_time"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Fine) TableName() string { return "fines" }
