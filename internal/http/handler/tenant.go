package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TenantHeader carries the tenant scope on every API request. Auth is
// the surrounding platform's concern; this core only scopes data.
const TenantHeader = "X-Tenant-ID"

func tenantID(c *gin.Context) (string, bool) {
	tenant := c.GetHeader(TenantHeader)
	if tenant == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + TenantHeader + " header"})
		return "", false
	}
	return tenant, true
}
