package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/response"
)

// MustGetUserID reads user_id set by JWTAuth. Writes a 401 and returns
// ok=false when it is missing.
func MustGetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, 10002, "unauthenticated")
		return "", false
	}
	return userID, true
}

// MustGetRole reads role set by JWTAuth
func MustGetRole(c *gin.Context) (string, bool) {
	role := c.GetString("role")
	if role == "" {
		response.Unauthorized(c, 10002, "unauthenticated")
		return "", false
	}
	return role, true
}

// MustGetActor caller identity as a service.Actor
func MustGetActor(c *gin.Context) (service.Actor, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Actor{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: userID, Role: role}, true
}

// MustGetUUIDParam reads a path parameter that must be a UUID. Writes a 400
// and returns ok=false otherwise.
func MustGetUUIDParam(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		response.BadRequest(c, 10001, "invalid "+name)
		return "", false
	}
	return id, true
}
