package models

import "time"

type PlateRecognition struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CorrelationID string    `gorm:"column:correlation_id;index" json:"correlation_id"`
	PlateNumber   string    `gorm:"column:plate_number;index" json:"plate_number"`
	Confidence    float64   `gorm:"column:confidence" json:"confidence"`
	ImagePath     string    `gorm:"column:image_path" json:"image_path"`
	Filename      string    `gorm:"column:filename" json:"filename"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (PlateRecognition) TableName() string { return "plate_recognitions" }
