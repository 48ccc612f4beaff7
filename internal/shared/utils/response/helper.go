package response

import "github.com/gin-gonic/gin"

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors []string) {
	c.JSON(code, StandardApiResponse{
		Success: status == "success",
		Message: message,
		Data:    data,
		Errors:  errors,
	})
}
