package handlers

import (
	"net/http"

	"hotel-operations-api/internal/database"
	"hotel-operations-api/internal/models"

	"github.com/gin-gonic/gin"
)

type UserResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	RoomNumber string `json:"roomNumber,omitempty"`
}

// GetAllUsers returns all users (protected)
// GET /api/users
func GetAllUsers(c *gin.Context) {
	var users []models.User
	if err := database.GetDB().Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	// Map to safe response payload
	resp := make([]UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, UserResponse{
			ID:         u.ID,
			Username:   u.Username,
			Role:       string(u.Role),
			RoomNumber: u.RoomNumber,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"count": len(resp),
	})
}
