package models

import (
	"gorm.io/gorm"
)

// TicketStatus represents the status of a ticket
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "inProgress"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// TicketPriority represents the priority of a ticket
type TicketPriority string

const (
	PriorityHigh   TicketPriority = "high"
	PriorityMedium TicketPriority = "medium"
	PriorityLow    TicketPriority = "low"
)

// Assignee represents the staff member a ticket is assigned to
type Assignee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ticket represents a service request raised for a room or by a guest
type Ticket struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	Status      TicketStatus   `json:"status" gorm:"not null;default:'open'"`
	RoomNumber  string         `json:"roomNumber" gorm:"column:room_number;index"`
	AssigneeID  string         `json:"-" gorm:"column:assignee_id"`
	Assignee    Assignee       `json:"assignee" gorm:"-"`
	Priority    TicketPriority `json:"priority" gorm:"default:'medium'"`
	UserID      string         `json:"-" gorm:"column:user_id;index"`
	gorm.Model
}

// TableName specifies the table name for Ticket Model
func (Ticket) TableName() string {
	return "tickets"
}
