package events

import "time"

// GuillotineStart is emitted before a graph API call.
type GuillotineStart struct {
	Endpoint  string
	QuerySize int
}

// GuillotineFinish is emitted after a graph API call returns.
type GuillotineFinish struct {
	Endpoint string
	Status   int
	Err      error
	Duration time.Duration
}
