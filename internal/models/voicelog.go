package models

import (
	"gorm.io/gorm"
)

// VoiceLog represents one voice interaction between a guest and the assistant
type VoiceLog struct {
	ID         string `json:"id" gorm:"primaryKey"`
	UserID     string `json:"userId" gorm:"column:user_id;index"`
	RoomNumber string `json:"roomNumber" gorm:"column:room_number"`
	Transcript string `json:"transcript" gorm:"not null"`
	Reply      string `json:"reply"`
	Intent     string `json:"intent"`
	gorm.Model
}

// TableName specifies the table name for VoiceLog Model
func (VoiceLog) TableName() string {
	return "voice_logs"
}
