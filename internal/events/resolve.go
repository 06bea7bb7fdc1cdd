package events

import "time"

// ResolveStart is emitted before a content path is resolved.
type ResolveStart struct {
	Path        string
	RequestType string
	RenderMode  string
}

// ResolveFinish is emitted after resolution completes, successfully or not.
type ResolveFinish struct {
	Path        string
	ContentType string
	ErrorCode   string
	Duration    time.Duration
}
