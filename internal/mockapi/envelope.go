package mockapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestIDKey is the gin context key holding the request correlation id.
const RequestIDKey = "request_id"

// respond writes the success envelope shared by every endpoint.
func respond(contextGin *gin.Context, status int, data any) {
	contextGin.JSON(status, gin.H{
		"statusCode": status,
		"message":    http.StatusText(status),
		"data":       data,
	})
}

// abortWithMessage writes the failure envelope. message is a string or a
// list of validation messages.
func abortWithMessage(contextGin *gin.Context, status int, message any) {
	contextGin.AbortWithStatusJSON(status, gin.H{
		"statusCode": status,
		"message":    message,
	})
}

// RequestID echoes the caller's X-Request-ID, or assigns one, and stores it
// under RequestIDKey.
func RequestID() gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		requestID := strings.TrimSpace(contextGin.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		contextGin.Set(RequestIDKey, requestID)
		contextGin.Header(requestIDHeader, requestID)
		contextGin.Next()
	}
}

func pathID(contextGin *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(contextGin.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithMessage(contextGin, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

type listQuery struct {
	page     int
	pageSize int
	filters  map[string]string
}

func parseListQuery(contextGin *gin.Context) listQuery {
	query := listQuery{filters: make(map[string]string)}
	query.page, _ = strconv.Atoi(contextGin.Query("current"))
	query.pageSize, _ = strconv.Atoi(contextGin.Query("pageSize"))
	for key, values := range contextGin.Request.URL.Query() {
		if key == "current" || key == "pageSize" || len(values) == 0 {
			continue
		}
		query.filters[key] = values[0]
	}
	return query
}
