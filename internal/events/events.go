// Package events defines the values published on the event bus. Subscribers
// receive the publisher's context, which carries the request id.
package events

import (
	"net/http"
	"time"
)

// RequestStart and RequestFinish bracket one request to the GraphQL endpoint.
type RequestStart struct {
	Request *http.Request
}

type RequestFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}

// OperationStart and OperationFinish bracket one GraphQL operation. A batched
// request publishes one pair per operation.
type OperationStart struct {
	Name string
	// Type is query or mutation; empty when the document did not parse.
	Type string
}

type OperationFinish struct {
	Name     string
	Type     string
	Errors   int
	Duration time.Duration
}

// ServiceCallStart is emitted before a bound service method runs.
type ServiceCallStart struct {
	Service string
	Method  string
}

type ServiceCallFinish struct {
	Service  string
	Method   string
	Err      error
	Duration time.Duration
}

// AuthDecision is emitted for every guarded root field.
type AuthDecision struct {
	ObjectType string
	Field      string
	Allowed    bool
}

// Generation is emitted once per contract after its artifacts are written.
type Generation struct {
	Contract string
	Changed  int
	Err      error
}

// Build is emitted after every aggregator run.
type Build struct {
	Contracts int
	Sources   int
	Err       error
	Duration  time.Duration
}
