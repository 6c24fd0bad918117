package handler

import (
	"errors"
	"net/http"

	"salesledger/internal/apperr"
	"salesledger/internal/logger"
	"salesledger/internal/middleware"
	"salesledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RoleGuard builds the auth middleware for a set of roles; no roles means any signed-in user.
type RoleGuard func(roles ...string) gin.HandlerFunc

// NewRoleGuard binds RequireRole to the signing secret.
func NewRoleGuard(secret []byte) RoleGuard {
	return func(roles ...string) gin.HandlerFunc {
		return middleware.RequireRole(secret, roles...)
	}
}

// respondError answers with the status of err's kind. Unclassified errors
// are logged and their text is not leaked.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.LogError("handler", c.FullPath(), c.Request.Method, nil, err)
		msg = "Internal server error"
	}
	c.JSON(status, response.ErrorKind(status, apperr.Kind(err), msg))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg))
}

// bindError answers a failed ShouldBindJSON. Binding tag failures are
// reported per field, e.g. {"Quantity": "min"}.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	res := response.Error(http.StatusBadRequest, "Invalid request payload")
	res.Data = fields
	c.JSON(http.StatusBadRequest, res)
}

// uuidParam parses a path parameter, answering 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// uuidQuery parses an optional query parameter.
func uuidQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(c, "Invalid "+name+": must be a UUID")
		return nil, false
	}
	return &id, true
}

func currentUser(c *gin.Context) (userID, role string) {
	return c.GetString(middleware.ContextUserID), c.GetString(middleware.ContextUserRole)
}
