/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apiresponses

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Messages returned to callers. Internal detail never appears in them.
const (
	MsgMailSent         = "Mail sent successfully"
	MsgTooManyRequests  = "Too many requests. Try again later."
	MsgServerError      = "Server error, try again later"
	MsgInvalidBody      = "Invalid request body"
	MsgBodyTooLarge     = "Request body too large"
	MsgNotFound         = "Not found"
	MsgMethodNotAllowed = "Method not allowed"
)

// Envelope is the response body of every mail API endpoint.
// This keeps the shape the contact form front-end expects on success and failure.
type Envelope struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

// RespondSuccess sends a 200 OK envelope with the given message.
func RespondSuccess(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Msg: message})
}

// RespondBadRequest sends a 400 Bad Request response.
// Use this for validation failures and malformed JSON.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = MsgInvalidBody
	}
	c.JSON(http.StatusBadRequest, Envelope{Msg: message})
}

// RespondPayloadTooLarge sends a 413 response when the body exceeds the configured cap.
func RespondPayloadTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, Envelope{Msg: MsgBodyTooLarge})
}

// RespondTooManyRequests sends a 429 response for rate limited clients.
func RespondTooManyRequests(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, Envelope{Msg: MsgTooManyRequests})
}

// RespondNotFound sends a 404 Not Found response.
func RespondNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, Envelope{Msg: MsgNotFound})
}

// RespondMethodNotAllowed sends a 405 response.
func RespondMethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, Envelope{Msg: MsgMethodNotAllowed})
}

// RespondInternalError sends a 500 Internal Server Error response.
// It logs the error with full details but returns a sanitized message to the client.
func RespondInternalError(c *gin.Context, operation string, err error, log *zap.SugaredLogger) {
	if log != nil {
		log.Errorw(fmt.Sprintf("Failed to %s", operation), "error", err)
	}
	RespondInternalErrorSimple(c)
}

// RespondInternalErrorSimple sends the generic 500 envelope.
// Use this when you've already logged the error.
func RespondInternalErrorSimple(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, Envelope{Msg: MsgServerError})
}
