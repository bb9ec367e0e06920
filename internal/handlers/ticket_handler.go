package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hotel-operations-api/internal/database"
	"hotel-operations-api/internal/models"
	"hotel-operations-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateTicketRequest represents the request payload for creating a ticket
type CreateTicketRequest struct {
	Title       string                `json:"title" binding:"required"`
	Description string                `json:"description"`
	Status      models.TicketStatus   `json:"status"`
	RoomNumber  string                `json:"roomNumber" binding:"required"`
	Assignee    models.Assignee       `json:"assignee"`
	Priority    models.TicketPriority `json:"priority"`
}

// UpdateTicketRequest represents the request payload for updating a ticket
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Status      *models.TicketStatus   `json:"status"`
	RoomNumber  *string                `json:"roomNumber"`
	Assignee    *models.Assignee       `json:"assignee"`
	Priority    *models.TicketPriority `json:"priority"`
}

// UpdateTicketStatusRequest represents a minimal request to change status
type UpdateTicketStatusRequest struct {
	Status models.TicketStatus `json:"status" binding:"required"`
}

// ticketEvent is the opaque payload of a ticket_update envelope.
type ticketEvent struct {
	Ticket models.Ticket `json:"ticket"`
	Action string        `json:"action"`
}

// TicketHandler serves the ticket CRUD endpoints and pushes ticket_update
// events through the hub after each persisted change.
type TicketHandler struct {
	hub *realtime.Hub
}

func NewTicketHandler(hub *realtime.Hub) *TicketHandler {
	return &TicketHandler{hub: hub}
}

// broadcastTicket pushes a ticket_update to the ticket's room and to the
// staff clients, after the DB write has committed.
func (h *TicketHandler) broadcastTicket(ticket models.Ticket, action string) {
	env, err := realtime.NewEnvelope(realtime.TypeTicketUpdate, ticketEvent{Ticket: ticket, Action: action})
	if err != nil {
		log.Printf("failed to build ticket_update event: %v", err)
		return
	}
	if ticket.RoomNumber != "" {
		h.hub.BroadcastToRoom(ticket.RoomNumber, env, "")
	}
	h.hub.BroadcastToRole(string(models.RoleStaff), env)
}

/*
*
GetTickets handles GET /api/tickets
Returns all tickets for authenticated users.
Optional query params: room, status, assigneeId plus page/limit/sort.
*/
func (h *TicketHandler) GetTickets(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return
	}

	// Query params: page (default 1), limit (default 5), sort (asc|desc on created_at, default desc)
	pageStr := c.DefaultQuery("page", "1")
	limitStr := c.DefaultQuery("limit", "5")
	sortParam := strings.ToLower(c.DefaultQuery("sort", "desc"))
	filterRoom := c.Query("room")
	filterStatus := c.Query("status")
	filterAssignee := c.Query("assigneeId")

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		limit = 5
	}
	if limit > 100 {
		limit = 100
	}

	offset := (page - 1) * limit

	order := "created_at desc"
	if sortParam == "asc" {
		order = "created_at asc"
	}

	db := database.GetDB()
	query := db.Model(&models.Ticket{})
	if filterRoom != "" {
		query = query.Where("room_number = ?", filterRoom)
	}
	if filterStatus != "" {
		query = query.Where("status = ?", filterStatus)
	}
	if filterAssignee != "" {
		query = query.Where("assignee_id = ?", filterAssignee)
	}

	// Total count (without pagination)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count tickets",
		})
		return
	}

	// Fetch paginated tickets with sorting
	var tickets []models.Ticket
	result := query.Session(&gorm.Session{}).Order(order).Limit(limit).Offset(offset).Find(&tickets)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch tickets",
		})
		return
	}

	// Enrich assignee field for response
	var users []models.User
	if err := database.GetDB().Find(&users).Error; err == nil {
		userByID := make(map[string]models.User, len(users))
		for _, u := range users {
			userByID[u.ID] = u
		}

		for i := range tickets {
			if u, ok := userByID[tickets[i].AssigneeID]; ok {
				tickets[i].Assignee = models.Assignee{
					ID:   u.ID,
					Name: u.Username,
				}
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"tickets": tickets,
		"count":   len(tickets), // number of items in this page
		"total":   total,        // total tickets (all pages) for current filter
		"page":    page,
		"limit":   limit,
		"sort":    sortParam,
	})
}

/*
*
CreateTicket handles POST /api/tickets
Creates a new ticket for the authenticated user
*/
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return
	}

	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	// Set default values if not provided
	status := req.Status
	if status == "" {
		status = models.StatusOpen
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	// Generate ticket ID (simple format: ticket-{timestamp})
	ticketID := fmt.Sprintf("ticket-%d", time.Now().UnixNano())

	ticket := models.Ticket{
		ID:          ticketID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		RoomNumber:  req.RoomNumber,
		AssigneeID:  req.Assignee.ID,
		Assignee:    req.Assignee,
		Priority:    priority,
		UserID:      userID,
	}

	result := database.GetDB().Create(&ticket)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create ticket",
		})
		return
	}

	h.broadcastTicket(ticket, "created")

	c.JSON(http.StatusCreated, ticket)
}

// UpdateTicket handles PUT /api/tickets/:id
// Updates a ticket created by the authenticated user
func (h *TicketHandler) UpdateTicket(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return
	}

	ticketID := c.Param("id")
	if ticketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Ticket ID is required",
		})
		return
	}

	// Check if ticket exists
	var existingTicket models.Ticket
	result := database.GetDB().Where("id = ?", ticketID).First(&existingTicket)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Ticket not found",
			})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to fetch ticket",
			})
		}
		return
	}

	// Parse update request
	var req UpdateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	// Update fields if provided
	if req.Title != nil {
		existingTicket.Title = *req.Title
	}
	if req.Description != nil {
		existingTicket.Description = *req.Description
	}
	if req.Status != nil {
		existingTicket.Status = *req.Status
	}
	if req.RoomNumber != nil {
		existingTicket.RoomNumber = *req.RoomNumber
	}
	if req.Assignee != nil {
		existingTicket.AssigneeID = req.Assignee.ID
		existingTicket.Assignee = *req.Assignee
	}
	if req.Priority != nil {
		existingTicket.Priority = *req.Priority
	}

	// Save updated ticket
	result = database.GetDB().Save(&existingTicket)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update ticket",
		})
		return
	}

	// Enrich assignee in response
	if existingTicket.AssigneeID != "" {
		var u models.User
		if err := database.GetDB().Where("id = ?", existingTicket.AssigneeID).First(&u).Error; err == nil {
			existingTicket.Assignee = models.Assignee{ID: u.ID, Name: u.Username}
		}
	}

	h.broadcastTicket(existingTicket, "updated")

	c.JSON(http.StatusOK, existingTicket)
}

// GetTicketByID handles GET /api/tickets/:id
// Returns a single ticket
func (h *TicketHandler) GetTicketByID(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return
	}

	ticketID := c.Param("id")
	if ticketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ticket ID is required"})
		return
	}

	var ticket models.Ticket
	result := database.GetDB().Where("id = ?", ticketID).First(&ticket)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ticket"})
		}
		return
	}

	// Enrich assignee
	if ticket.AssigneeID != "" {
		var u models.User
		if err := database.GetDB().Where("id = ?", ticket.AssigneeID).First(&u).Error; err == nil {
			ticket.Assignee = models.Assignee{ID: u.ID, Name: u.Username}
		}
	}

	c.JSON(http.StatusOK, ticket)
}

// UpdateTicketStatus handles PATCH /api/tickets/:id/status
// Updates only the status of a ticket
func (h *TicketHandler) UpdateTicketStatus(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return
	}

	ticketID := c.Param("id")
	if ticketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ticket ID is required"})
		return
	}

	var req UpdateTicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var ticket models.Ticket
	result := database.GetDB().Where("id = ?", ticketID).First(&ticket)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ticket not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ticket"})
		}
		return
	}

	// Explicitly update only the status column to ensure persistence
	ticket.Status = req.Status
	if err := database.GetDB().Model(&ticket).Update("status", req.Status).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		return
	}

	// Enrich assignee in response
	if ticket.AssigneeID != "" {
		var u models.User
		if err := database.GetDB().Where("id = ?", ticket.AssigneeID).First(&u).Error; err == nil {
			ticket.Assignee = models.Assignee{ID: u.ID, Name: u.Username}
		}
	}

	h.broadcastTicket(ticket, "status_changed")

	c.JSON(http.StatusOK, ticket)
}

// DeleteTicket handles DELETE /api/tickets/:id
// Deletes a ticket created by the authenticated user
func (h *TicketHandler) DeleteTicket(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return
	}

	ticketID := c.Param("id")
	if ticketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Ticket ID is required",
		})
		return
	}

	// Check if ticket exists and belongs to user
	var ticket models.Ticket
	result := database.GetDB().Where("id = ? AND user_id = ?", ticketID, userID).First(&ticket)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Ticket not found",
			})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to fetch ticket",
			})
		}
		return
	}

	// Delete ticket
	result = database.GetDB().Delete(&ticket)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to delete ticket",
		})
		return
	}

	h.broadcastTicket(ticket, "deleted")

	c.JSON(http.StatusOK, gin.H{
		"message": "Ticket deleted successfully",
		"id":      ticketID,
	})
}

// GetStatsByAssignee handles GET /api/stats/:userid
// Returns counts of tickets by status where the assignee matches :userid
func (h *TicketHandler) GetStatsByAssignee(c *gin.Context) {
	// Ensure request is authenticated
	authUserID := c.GetString("user_id")
	if authUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in token"})
		return
	}

	targetUserID := c.Param("userid")
	if strings.TrimSpace(targetUserID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userid is required"})
		return
	}

	db := database.GetDB()

	type row struct {
		Status string
		Count  int64
	}

	var rows []row
	if err := db.Model(&models.Ticket{}).
		Select("status, COUNT(*) as count").
		Where("assignee_id = ?", targetUserID).
		Group("status").
		Scan(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	// Initialize with zeros
	counts := map[string]int64{
		string(models.StatusOpen):       0,
		string(models.StatusInProgress): 0,
		string(models.StatusResolved):   0,
		string(models.StatusClosed):     0,
	}
	var total int64 = 0
	for _, r := range rows {
		counts[r.Status] = r.Count
		total += r.Count
	}

	c.JSON(http.StatusOK, gin.H{
		"open":       counts[string(models.StatusOpen)],
		"inProgress": counts[string(models.StatusInProgress)],
		"resolved":   counts[string(models.StatusResolved)],
		"closed":     counts[string(models.StatusClosed)],
		"total":      total,
	})
}
