package ui

import "errors"

var (
	// ErrSinkClosed is returned when mutating or closing an already closed Sink.
	ErrSinkClosed = errors.New("ui: sink closed")
	// ErrStreamClosed is returned when appending to or closing a closed TextStream.
	ErrStreamClosed = errors.New("ui: text stream closed")
	// ErrSlotSettled is returned when resolving or aborting a Slot that already left the loading state.
	ErrSlotSettled = errors.New("ui: slot already settled")
)
