package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RootGreeting is the body served on GET /.
const RootGreeting = "Hello, World!"

// Root confirms the service is up
// GET /
func Root(c *gin.Context) {
	c.String(http.StatusOK, RootGreeting)
}

// NotFound answers unknown routes with a JSON error
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}
