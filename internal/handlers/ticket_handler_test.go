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

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTicketRouter(t *testing.T, hub *realtime.Hub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db

	h := NewTicketHandler(hub)
	r := gin.New()
	r.Use(middleware.JWTAuthMiddleware())
	r.GET("/api/tickets", h.GetTickets)
	r.GET("/api/tickets/:id", h.GetTicketByID)
	r.POST("/api/tickets", h.CreateTicket)
	r.PUT("/api/tickets/:id", h.UpdateTicket)
	r.PATCH("/api/tickets/:id/status", h.UpdateTicketStatus)
	r.DELETE("/api/tickets/:id", h.DeleteTicket)
	r.GET("/api/stats/:userid", h.GetStatsByAssignee)
	return r
}

func staffToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken("u-1", "alice", "staff")
	require.NoError(t, err)
	return token
}

func TestCreateTicket_Success(t *testing.T) {
	hub := newTestHub(t)
	r := newTicketRouter(t, hub)

	// Seed a user to be the assignee
	assignee := models.User{ID: "u-2", Username: "bob", Password: "x", Role: models.RoleStaff}
	require.NoError(t, database.DB.Create(&assignee).Error)

	payload := map[string]any{
		"title":       "Leaky faucet",
		"description": "Bathroom sink drips",
		"roomNumber":  "101",
		"assignee":    map[string]string{"id": assignee.ID, "name": assignee.Username},
		"priority":    "high",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+staffToken(t))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Ticket
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Equal(t, models.StatusOpen, created.Status)
	require.Equal(t, "101", created.RoomNumber)
	require.Equal(t, assignee.ID, created.Assignee.ID)
}

func TestCreateTicket_BroadcastsToRoomAndStaff(t *testing.T) {
	hub := newTestHub(t)
	r := newTicketRouter(t, hub)

	guest := connectAs(t, hub, "g-1", "guest", "101")
	staff := connectAs(t, hub, "s-1", "staff", "")

	payload := map[string]any{
		"title":      "Extra towels",
		"roomNumber": "101",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+staffToken(t))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	require.Eventually(t, func() bool {
		return guest.received(realtime.TypeTicketUpdate) && staff.received(realtime.TypeTicketUpdate)
	}, time.Second, 5*time.Millisecond)
}

func TestGetTickets_FilterByRoom(t *testing.T) {
	hub := newTestHub(t)
	r := newTicketRouter(t, hub)

	require.NoError(t, database.DB.Create(&models.Ticket{ID: "t-1", Title: "a", RoomNumber: "101", Status: models.StatusOpen, UserID: "u-1"}).Error)
	require.NoError(t, database.DB.Create(&models.Ticket{ID: "t-2", Title: "b", RoomNumber: "202", Status: models.StatusOpen, UserID: "u-1"}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/tickets?room=101", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tickets []models.Ticket `json:"tickets"`
		Total   int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.Total)
	require.Equal(t, "t-1", resp.Tickets[0].ID)
}

func TestUpdateTicketStatus(t *testing.T) {
	hub := newTestHub(t)
	r := newTicketRouter(t, hub)

	require.NoError(t, database.DB.Create(&models.Ticket{ID: "t-1", Title: "a", RoomNumber: "101", Status: models.StatusOpen, UserID: "u-1"}).Error)

	body, _ := json.Marshal(map[string]string{"status": "resolved"})
	req := httptest.NewRequest(http.MethodPatch, "/api/tickets/t-1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+staffToken(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stored models.Ticket
	require.NoError(t, database.DB.Where("id = ?", "t-1").First(&stored).Error)
	require.Equal(t, models.StatusResolved, stored.Status)
}

func TestDeleteTicket_NotFound(t *testing.T) {
	hub := newTestHub(t)
	r := newTicketRouter(t, hub)

	req := httptest.NewRequest(http.MethodDelete, "/api/tickets/nope", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStatsByAssignee(t *testing.T) {
	hub := newTestHub(t)
	r := newTicketRouter(t, hub)

	require.NoError(t, database.DB.Create(&models.Ticket{ID: "t-1", Title: "a", Status: models.StatusOpen, AssigneeID: "u-2", UserID: "u-1"}).Error)
	require.NoError(t, database.DB.Create(&models.Ticket{ID: "t-2", Title: "b", Status: models.StatusResolved, AssigneeID: "u-2", UserID: "u-1"}).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/u-2", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp["open"])
	require.Equal(t, int64(1), resp["resolved"])
	require.Equal(t, int64(2), resp["total"])
}
