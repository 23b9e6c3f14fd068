package api

import "github.com/gin-gonic/gin"

// respondError writes the {success:false,message} body used by every REST error
func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
