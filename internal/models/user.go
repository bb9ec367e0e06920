package models

import (
	"gorm.io/gorm"
)

// UserRole represents the role of a user within the hotel
type UserRole string

const (
	RoleStaff UserRole = "staff"
	RoleAdmin UserRole = "admin"
	RoleGuest UserRole = "guest"
)

// User represents a staff member or guest account
type User struct {
	ID         string   `json:"id" gorm:"primaryKey"`
	Username   string   `json:"username" gorm:"unique;not null"`
	Password   string   `json:"-" gorm:"not null"`
	Role       UserRole `json:"role" gorm:"not null;default:'staff'"`
	RoomNumber string   `json:"roomNumber" gorm:"column:room_number"`
	gorm.Model
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}
