package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gatherly/internal/shared/utils/response"
)

type Controller interface {
	GetTrail(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

// GetTrail godoc
// @Summary      List audit trail entries
// @Tags         audit
// @Produce      json
// @Param        page         query     int     false  "Page number"
// @Param        limit        query     int     false  "Page size (max 100)"
// @Param        action       query     string  false  "Filter by action"
// @Param        entity_type  query     string  false  "Filter by entity type"
// @Param        entity_id    query     string  false  "Filter by entity id"
// @Param        user_id      query     string  false  "Filter by acting user"
// @Param        from         query     string  false  "RFC3339 lower bound"
// @Param        to           query     string  false  "RFC3339 upper bound"
// @Success      200  {object}  response.StandardApiResponse
// @Router       /audit [get]
// @Security     BearerAuth
func (ctrl *controller) GetTrail(c *gin.Context) {
	query, err := parseListQuery(c)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
		return
	}

	result, err := ctrl.service.GetTrail(c.Request.Context(), query)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusInternalServerError, "Failed to retrieve audit trail", nil, []string{err.Error()})
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Audit trail retrieved successfully", result, nil)
}

func parseListQuery(c *gin.Context) (ListQuery, error) {
	query := ListQuery{
		Action:     c.Query("action"),
		EntityType: c.Query("entity_type"),
	}

	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	if raw := c.Query("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return query, err
		}
		query.EntityID = &id
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return query, err
		}
		query.UserID = &id
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, err
		}
		query.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, err
		}
		query.To = &to
	}

	return query, nil
}
