package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hotel-operations-api/internal/auth"
	"hotel-operations-api/internal/database"
	"hotel-operations-api/internal/middleware"
	"hotel-operations-api/internal/models"
	"hotel-operations-api/internal/realtime"
	"hotel-operations-api/internal/testutil"
	"hotel-operations-api/internal/voice"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newVoiceLogRouter(t *testing.T, hub *realtime.Hub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db

	h := NewVoiceLogHandler(hub, voice.NewClient())
	r := gin.New()
	r.Use(middleware.JWTAuthMiddleware())
	r.POST("/api/voice-logs", h.CreateVoiceLog)
	r.GET("/api/voice-logs", h.GetVoiceLogs)
	r.DELETE("/api/voice-logs/:id", h.DeleteVoiceLog)
	return r
}

func guestToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, "guest-"+userID, "guest")
	require.NoError(t, err)
	return token
}

func TestCreateVoiceLog_PersistsAndPushesReply(t *testing.T) {
	hub := newTestHub(t)
	r := newVoiceLogRouter(t, hub)

	phone := connectAs(t, hub, "g-1", "guest", "305")

	body, _ := json.Marshal(map[string]string{
		"transcript": "can I get extra pillows",
		"roomNumber": "305",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/voice-logs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+guestToken(t, "g-1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.VoiceLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, "g-1", created.UserID)
	require.NotEmpty(t, created.Reply)

	var stored models.VoiceLog
	require.NoError(t, database.DB.Where("id = ?", created.ID).First(&stored).Error)
	require.Equal(t, created.Reply, stored.Reply)

	require.Eventually(t, func() bool {
		return phone.received(realtime.TypeVoiceResponse)
	}, time.Second, 5*time.Millisecond)
}

func TestGetVoiceLogs_ScopedToUser(t *testing.T) {
	hub := newTestHub(t)
	r := newVoiceLogRouter(t, hub)

	require.NoError(t, database.DB.Create(&models.VoiceLog{ID: "v-1", UserID: "g-1", Transcript: "towels"}).Error)
	require.NoError(t, database.DB.Create(&models.VoiceLog{ID: "v-2", UserID: "g-2", Transcript: "wifi"}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/voice-logs", nil)
	req.Header.Set("Authorization", "Bearer "+guestToken(t, "g-1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		VoiceLogs []models.VoiceLog `json:"voiceLogs"`
		Count     int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "v-1", resp.VoiceLogs[0].ID)
}

func TestDeleteVoiceLog_OtherUsersLogNotFound(t *testing.T) {
	hub := newTestHub(t)
	r := newVoiceLogRouter(t, hub)

	require.NoError(t, database.DB.Create(&models.VoiceLog{ID: "v-1", UserID: "g-2", Transcript: "towels"}).Error)

	req := httptest.NewRequest(http.MethodDelete, "/api/voice-logs/v-1", nil)
	req.Header.Set("Authorization", "Bearer "+guestToken(t, "g-1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
