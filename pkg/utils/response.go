package utils

import "github.com/gin-gonic/gin"

// SuccessResponse writes a uniform success envelope.
func SuccessResponse(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// ErrorResponse writes a uniform error envelope.
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}
