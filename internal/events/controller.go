package events

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gatherly/internal/domain"
	"gatherly/internal/shared/utils/response"
)

type Controller interface {
	CreateEvent(c *gin.Context)
	GetEvent(c *gin.Context)
	UpdateEvent(c *gin.Context)
	DeleteEvent(c *gin.Context)
	PublishEvent(c *gin.Context)
	UnpublishEvent(c *gin.Context)
	GetAllEvents(c *gin.Context)
	GetUpcomingEvents(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

// CreateEvent godoc
// @Summary      Create an event
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        request  body      CreateEventRequest  true  "Event payload"
// @Success      201      {object}  response.StandardApiResponse
// @Router       /events [post]
// @Security     BearerAuth
func (ctrl *controller) CreateEvent(c *gin.Context) {
	var req CreateEventRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, []string{err.Error()})
		return
	}

	// Get admin user ID from context (set by auth middleware)
	adminID, exists := c.Get("user_id")
	if !exists {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "Admin not authenticated", nil, nil)
		return
	}

	adminUUID, err := uuid.Parse(adminID.(string))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Invalid admin ID format", nil, nil)
		return
	}

	event, err := ctrl.service.CreateEvent(c.Request.Context(), adminUUID, req)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Event created successfully", event, nil)
}

// GetEvent godoc
// @Summary      Read a single event
// @Tags         events
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /events/{id} [get]
func (ctrl *controller) GetEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, []string{err.Error()})
		return
	}

	event, err := ctrl.service.GetEventByID(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to fetch event", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event retrieved successfully", event, nil)
}

// UpdateEvent godoc
// @Summary      Update event attributes
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Event ID"
// @Param        request  body      UpdateEventRequest  true  "Fields to update"
// @Success      200      {object}  response.StandardApiResponse
// @Router       /events/{id} [put]
// @Security     BearerAuth
func (ctrl *controller) UpdateEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, []string{err.Error()})
		return
	}

	var req UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, []string{err.Error()})
		return
	}

	adminID, exists := c.Get("user_id")
	if !exists {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "Admin not authenticated", nil, nil)
		return
	}

	adminUUID, err := uuid.Parse(adminID.(string))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Invalid admin ID format", nil, nil)
		return
	}

	event, err := ctrl.service.UpdateEvent(c.Request.Context(), eventID, adminUUID, req)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event updated successfully", event, nil)
}

// DeleteEvent godoc
// @Summary      Delete an event without registrations
// @Tags         events
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /events/{id} [delete]
// @Security     BearerAuth
func (ctrl *controller) DeleteEvent(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, []string{err.Error()})
		return
	}

	err = ctrl.service.DeleteEvent(c.Request.Context(), eventID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEventNotFound):
			response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, nil)
		case errors.Is(err, domain.ErrHasRegistrations):
			response.RespondJSON(c, "error", http.StatusConflict, "Cannot delete an event with existing registrations", nil, nil)
		default:
			response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
		}
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event deleted successfully", nil, nil)
}

// PublishEvent godoc
// @Summary      Make an event publicly visible
// @Tags         events
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /events/{id}/publish [post]
// @Security     BearerAuth
func (ctrl *controller) PublishEvent(c *gin.Context) {
	ctrl.togglePublished(c, true, "Event published successfully")
}

// UnpublishEvent godoc
// @Summary      Hide an event from the public listing
// @Tags         events
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /events/{id}/unpublish [post]
// @Security     BearerAuth
func (ctrl *controller) UnpublishEvent(c *gin.Context) {
	ctrl.togglePublished(c, false, "Event unpublished successfully")
}

func (ctrl *controller) togglePublished(c *gin.Context, published bool, message string) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, []string{err.Error()})
		return
	}

	var event *EventResponse
	if published {
		event, err = ctrl.service.Publish(c.Request.Context(), eventID)
	} else {
		event, err = ctrl.service.Unpublish(c.Request.Context(), eventID)
	}
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to update event visibility", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, message, event, nil)
}

// GetAllEvents godoc
// @Summary      List events
// @Tags         events
// @Produce      json
// @Param        page            query     int     false  "Page number"
// @Param        limit           query     int     false  "Page size"
// @Param        search          query     string  false  "Search term"
// @Param        published_only  query     bool    false  "Only published events"
// @Success      200             {object}  response.StandardApiResponse
// @Router       /events [get]
func (ctrl *controller) GetAllEvents(c *gin.Context) {
	var query EventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, []string{err.Error()})
		return
	}

	// Only admins may list drafts; everyone else sees published events
	if role, ok := c.Get("user_role"); !ok || role != "ADMIN" {
		query.PublishedOnly = true
	}

	result, err := ctrl.service.GetAllEvents(c.Request.Context(), query)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to fetch events", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Events retrieved successfully", result, nil)
}

// GetUpcomingEvents godoc
// @Summary      List upcoming published events
// @Tags         events
// @Produce      json
// @Param        limit  query     int  false  "Max results"
// @Success      200    {object}  response.StandardApiResponse
// @Router       /events/upcoming [get]
func (ctrl *controller) GetUpcomingEvents(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid limit parameter", nil, nil)
			return
		}
		limit = parsed
	}

	events, err := ctrl.service.GetUpcomingEvents(c.Request.Context(), limit)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to fetch upcoming events", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Upcoming events retrieved successfully", events, nil)
}
