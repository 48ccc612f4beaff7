package registrations

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gatherly/internal/domain"
	"gatherly/internal/shared/utils/response"
)

// IdempotencyKeyHeader carries the client nonce for Register. Repeating a
// request with the same key returns the original outcome instead of a
// duplicate registration.
const IdempotencyKeyHeader = "X-Idempotency-Key"

type Controller interface {
	Register(c *gin.Context)
	CancelRegistration(c *gin.Context)
	ConfirmRegistration(c *gin.Context)
	GetRegistration(c *gin.Context)
	GetEventRegistrations(c *gin.Context)
	GetWaitlist(c *gin.Context)
	GetMyRegistrations(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

// Register godoc
// @Summary      Register the caller for an event
// @Description  Confirms a spot when capacity allows, otherwise joins the waitlist. Safe to retry with the same X-Idempotency-Key header.
// @Tags         registrations
// @Accept       json
// @Produce      json
// @Param        id                 path      string           true   "Event ID"
// @Param        X-Idempotency-Key  header    string           false  "Client-chosen retry nonce"
// @Param        request            body      RegisterRequest  false  "Optional registration details"
// @Success      201  {object}  response.StandardApiResponse
// @Failure      409  {object}  response.StandardApiResponse
// @Router       /events/{id}/register [post]
// @Security     BearerAuth
func (ctrl *controller) Register(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, []string{err.Error()})
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, []string{err.Error()})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	userUUID, err := uuid.Parse(userID.(string))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Invalid user ID format", nil, nil)
		return
	}

	registration, err := ctrl.service.Register(c.Request.Context(), eventID, userUUID, req.Notes, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEventNotFound):
			response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, nil)
		case errors.Is(err, domain.ErrUserNotFound):
			response.RespondJSON(c, "error", http.StatusNotFound, "User not found", nil, nil)
		case errors.Is(err, domain.ErrEventNotPublished):
			response.RespondJSON(c, "error", http.StatusConflict, "Event is not open for registration", nil, nil)
		case errors.Is(err, domain.ErrEventStarted):
			response.RespondJSON(c, "error", http.StatusConflict, "Event has already started", nil, nil)
		case errors.Is(err, domain.ErrAlreadyRegistered):
			response.RespondJSON(c, "error", http.StatusConflict, "Already registered for this event", nil, nil)
		case errors.Is(err, domain.ErrWaitlistClosed):
			response.RespondJSON(c, "error", http.StatusConflict, "Event is full and the waitlist is closed", nil, nil)
		case errors.Is(err, domain.ErrDuplicateRequest):
			response.RespondJSON(c, "error", http.StatusConflict, "A request with this idempotency key is already in progress", nil, nil)
		case errors.Is(err, domain.ErrNotAuthorized):
			response.RespondJSON(c, "error", http.StatusForbidden, "Account is not allowed to register", nil, nil)
		default:
			response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to register for event", nil, nil)
		}
		return
	}

	message := "Registration confirmed"
	if registration.Status == StatusWaitlisted.String() {
		message = "Added to waitlist"
	}
	response.RespondJSON(c, "success", http.StatusCreated, message, registration, nil)
}

// CancelRegistration godoc
// @Summary      Cancel a registration
// @Description  Owners cancel their own registration; admins may cancel any. Freed capacity promotes the waitlist immediately.
// @Tags         registrations
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Param        rid  path      string  true  "Registration ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /events/{id}/registrations/{rid} [delete]
// @Router       /events/{id}/registrations/{rid}/cancel [post]
// @Security     BearerAuth
func (ctrl *controller) CancelRegistration(c *gin.Context) {
	registrationID, err := uuid.Parse(c.Param("rid"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid registration ID", nil, []string{err.Error()})
		return
	}

	requesterID, exists := c.Get("user_id")
	if !exists {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	requesterUUID, err := uuid.Parse(requesterID.(string))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Invalid user ID format", nil, nil)
		return
	}

	role, _ := c.Get("user_role")
	isAdmin := role == "ADMIN"

	err = ctrl.service.Cancel(c.Request.Context(), registrationID, requesterUUID, isAdmin)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRegistrationNotFound):
			response.RespondJSON(c, "error", http.StatusNotFound, "Registration not found", nil, nil)
		case errors.Is(err, domain.ErrInvalidTransition):
			response.RespondJSON(c, "error", http.StatusConflict, "Registration cannot be cancelled in its current state", nil, nil)
		case errors.Is(err, domain.ErrNotAuthorized):
			response.RespondJSON(c, "error", http.StatusForbidden, "Not allowed to cancel this registration", nil, nil)
		default:
			response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to cancel registration", nil, nil)
		}
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Registration cancelled successfully", nil, nil)
}

// ConfirmRegistration godoc
// @Summary      Confirm a pending or waitlisted registration
// @Description  Admin override that confirms a registration regardless of remaining capacity.
// @Tags         registrations
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Param        rid  path      string  true  "Registration ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /events/{id}/registrations/{rid}/confirm [post]
// @Security     BearerAuth
func (ctrl *controller) ConfirmRegistration(c *gin.Context) {
	registrationID, err := uuid.Parse(c.Param("rid"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid registration ID", nil, []string{err.Error()})
		return
	}

	registration, err := ctrl.service.Confirm(c.Request.Context(), registrationID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRegistrationNotFound):
			response.RespondJSON(c, "error", http.StatusNotFound, "Registration not found", nil, nil)
		case errors.Is(err, domain.ErrInvalidTransition):
			response.RespondJSON(c, "error", http.StatusConflict, "Registration cannot be confirmed in its current state", nil, nil)
		default:
			response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to confirm registration", nil, nil)
		}
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Registration confirmed successfully", registration, nil)
}

// GetRegistration godoc
// @Summary      Get a single registration
// @Tags         registrations
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Param        rid  path      string  true  "Registration ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /events/{id}/registrations/{rid} [get]
// @Security     BearerAuth
func (ctrl *controller) GetRegistration(c *gin.Context) {
	registrationID, err := uuid.Parse(c.Param("rid"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid registration ID", nil, []string{err.Error()})
		return
	}

	registration, err := ctrl.service.GetRegistration(c.Request.Context(), registrationID)
	if err != nil {
		if errors.Is(err, domain.ErrRegistrationNotFound) {
			response.RespondJSON(c, "error", http.StatusNotFound, "Registration not found", nil, nil)
			return
		}
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to fetch registration", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Registration retrieved successfully", registration, nil)
}

// GetEventRegistrations godoc
// @Summary      List registrations for an event
// @Tags         registrations
// @Produce      json
// @Param        id      path      string  true   "Event ID"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Page size (default 10, max 100)"
// @Param        status  query     int     false  "Filter by status code"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /events/{id}/registrations [get]
// @Security     BearerAuth
func (ctrl *controller) GetEventRegistrations(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, []string{err.Error()})
		return
	}

	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, []string{err.Error()})
		return
	}
	if query.Status != nil && !query.Status.IsValid() {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid status code", nil, nil)
		return
	}

	page, err := ctrl.service.GetEventRegistrations(c.Request.Context(), eventID, query)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to fetch registrations", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Registrations retrieved successfully", page, nil)
}

// GetWaitlist godoc
// @Summary      Get the ordered waitlist for an event
// @Tags         registrations
// @Produce      json
// @Param        id   path      string  true  "Event ID"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /events/{id}/waitlist [get]
// @Security     BearerAuth
func (ctrl *controller) GetWaitlist(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid event ID", nil, []string{err.Error()})
		return
	}

	snapshot, err := ctrl.service.GetWaitlist(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, domain.ErrEventNotFound) {
			response.RespondJSON(c, "error", http.StatusNotFound, "Event not found", nil, nil)
			return
		}
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to fetch waitlist", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Waitlist retrieved successfully", snapshot, nil)
}

// GetMyRegistrations godoc
// @Summary      List the caller's registrations
// @Tags         registrations
// @Produce      json
// @Success      200  {object}  response.StandardApiResponse
// @Router       /registrations/me [get]
// @Security     BearerAuth
func (ctrl *controller) GetMyRegistrations(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	userUUID, err := uuid.Parse(userID.(string))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Invalid user ID format", nil, nil)
		return
	}

	registrations, err := ctrl.service.GetUserRegistrations(c.Request.Context(), userUUID)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to fetch registrations", nil, nil)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Registrations retrieved successfully", registrations, nil)
}
