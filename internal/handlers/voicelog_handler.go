package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"hotel-operations-api/internal/database"
	"hotel-operations-api/internal/models"
	"hotel-operations-api/internal/realtime"
	"hotel-operations-api/internal/voice"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateVoiceLogRequest represents an incoming voice interaction
type CreateVoiceLogRequest struct {
	Transcript string `json:"transcript" binding:"required"`
	RoomNumber string `json:"roomNumber"`
}

// voiceEvent is the opaque payload of a voice_response envelope.
type voiceEvent struct {
	LogID  string `json:"logId"`
	Reply  string `json:"reply"`
	Intent string `json:"intent"`
}

// VoiceLogHandler records guest voice interactions, proxies the transcript
// to the assistant service, and pushes the reply to the guest's clients.
type VoiceLogHandler struct {
	hub   *realtime.Hub
	voice *voice.Client
}

func NewVoiceLogHandler(hub *realtime.Hub, voiceClient *voice.Client) *VoiceLogHandler {
	return &VoiceLogHandler{hub: hub, voice: voiceClient}
}

// CreateVoiceLog handles POST /api/voice-logs
func (h *VoiceLogHandler) CreateVoiceLog(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
		return
	}

	var req CreateVoiceLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.voice.Respond(c.Request.Context(), req.Transcript, req.RoomNumber)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Voice service unavailable"})
		return
	}

	voiceLog := models.VoiceLog{
		ID:         fmt.Sprintf("voice-%d", time.Now().UnixNano()),
		UserID:     userID,
		RoomNumber: req.RoomNumber,
		Transcript: req.Transcript,
		Reply:      reply.Text,
		Intent:     reply.Intent,
	}
	if err := database.GetDB().Create(&voiceLog).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save voice log"})
		return
	}

	// Push the reply to whichever devices the guest has connected.
	env, err := realtime.NewEnvelope(realtime.TypeVoiceResponse, voiceEvent{
		LogID:  voiceLog.ID,
		Reply:  reply.Text,
		Intent: reply.Intent,
	})
	if err != nil {
		log.Printf("failed to build voice_response event: %v", err)
	} else {
		h.hub.BroadcastToUser(userID, env)
	}

	c.JSON(http.StatusCreated, voiceLog)
}

// GetVoiceLogs handles GET /api/voice-logs
// Returns the authenticated user's voice logs, most recent first.
func (h *VoiceLogHandler) GetVoiceLogs(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
		return
	}

	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var logs []models.VoiceLog
	result := database.GetDB().
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&logs)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch voice logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"voiceLogs": logs,
		"count":     len(logs),
	})
}

// DeleteVoiceLog handles DELETE /api/voice-logs/:id
func (h *VoiceLogHandler) DeleteVoiceLog(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
		return
	}

	logID := c.Param("id")
	var voiceLog models.VoiceLog
	result := database.GetDB().Where("id = ? AND user_id = ?", logID, userID).First(&voiceLog)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Voice log not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch voice log"})
		}
		return
	}

	if err := database.GetDB().Delete(&voiceLog).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete voice log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Voice log deleted successfully", "id": logID})
}
