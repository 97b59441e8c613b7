// Package errmsg turns errors into text that is safe to show to the user.
//
// Messages that look like they leak server internals (SQL, schema names)
// are replaced with a generic notice; authentication failures become a
// prompt to log in again; everything else is shown as the server wrote it.
package errmsg

import (
	"errors"
	"net/http"
	"strings"

	"socialfeed/internal/graphql"
	"socialfeed/internal/models"
)

// User-facing messages.
const (
	NetworkMessage    = "Network error. Please check your connection."
	ServerMessage     = "A server error occurred. Please try again later or contact support."
	AuthMessage       = "Authentication failed. Please login again."
	UnexpectedMessage = "An unexpected error occurred."
)

var serverMarkers = []string{"relation", "SQL", "database", "does not exist", "syntax error", "constraint"}

var authMarkers = []string{"JWT", "token", "authentication"}

// Message returns the user-facing text for err. A nil error yields "".
func Message(err error) string {
	if err == nil {
		return ""
	}

	var netErr *graphql.NetworkError
	if errors.As(err, &netErr) {
		return NetworkMessage
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
		return appErr.Message
	}

	text := rawText(err)
	switch {
	case containsAny(text, serverMarkers):
		return ServerMessage
	case containsAny(text, authMarkers):
		return AuthMessage
	}

	// A non-2xx reply without a GraphQL body has nothing worth showing.
	var httpErr *graphql.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden {
			return AuthMessage
		}
		return ServerMessage
	}

	if strings.TrimSpace(text) == "" {
		return UnexpectedMessage
	}
	return text
}

// rawText picks the most specific message err carries: the first GraphQL
// error, the business message, or the error string.
func rawText(err error) string {
	var respErr *graphql.ResponseError
	if errors.As(err, &respErr) {
		return respErr.FirstMessage()
	}
	var httpErr *graphql.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Body
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
