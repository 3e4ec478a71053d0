package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// currentRepID reads the authenticated rep ID set by the auth middleware.
// It writes a 401 and returns zero when the context carries none.
func currentRepID(c *gin.Context) uint64 {
	v, exists := c.Get("repID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing rep context"})
		return 0
	}
	repID, ok := v.(uint64)
	if !ok || repID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing rep context"})
		return 0
	}
	return repID
}
