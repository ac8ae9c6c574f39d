package domain

import (
	"fmt"
	"net/http"
)

// NotInvokedMessage is reported when the outbound call was never attempted.
const NotInvokedMessage = "could not invoke API, please see error logs"

// APIResponseDetails captures the outcome of one outbound API invocation.
type APIResponseDetails struct {
	StatusCode int
	Body       string
}

// NewAPIResponseDetails wraps a completed HTTP exchange.
func NewAPIResponseDetails(statusCode int, body string) APIResponseDetails {
	return APIResponseDetails{StatusCode: statusCode, Body: body}
}

// NotInvokedResponse is the synthesized result when no trust store was available.
func NotInvokedResponse() APIResponseDetails {
	return APIResponseDetails{StatusCode: http.StatusNotFound, Body: NotInvokedMessage}
}

// FailedInvocationResponse is the synthesized result for an error during the call.
func FailedInvocationResponse(err error) APIResponseDetails {
	return APIResponseDetails{StatusCode: http.StatusInternalServerError, Body: err.Error()}
}

func (d APIResponseDetails) String() string {
	return fmt.Sprintf("APIResponseDetails{statusCode=%d, body=%q}", d.StatusCode, d.Body)
}
