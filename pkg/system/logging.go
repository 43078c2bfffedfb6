// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package system

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
const ReqLoggerKey = "reqLogger"

// RequestIDKey is the context key holding the request ID assigned by the request ID middleware.
const RequestIDKey = "requestID"

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise returns the fallback logger.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// GetRequestID returns the request ID stored in the gin context, or an empty string.
func GetRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(RequestIDKey)
}

// RequestFields returns key/value pairs describing the request, suitable for
// SugaredLogger.With. The client address is the one gin resolved through trusted proxies.
func RequestFields(c *gin.Context) []interface{} {
	if c == nil || c.Request == nil {
		return nil
	}
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"client", c.ClientIP(),
	}
	if id := GetRequestID(c); id != "" {
		fields = append(fields, "requestID", id)
	}
	return fields
}
