package chatlog

import "time"

// DefaultStaleAfter is the idle gap after which a fragment opens a new record.
const DefaultStaleAfter = 2 * time.Second

// Sink is the surface a response generator writes fragments into.
type Sink struct {
	// log receives the fragments.
	log *Log
	// StaleAfter is the staleness threshold; zero means DefaultStaleAfter.
	StaleAfter time.Duration
}

// NewSink binds a sink to log.
func NewSink(log *Log, staleAfter time.Duration) *Sink {
	return &Sink{log: log, StaleAfter: staleAfter}
}

// Emit appends fragment to the active assistant record or opens a new one.
// Empty fragments are ignored.
func (s *Sink) Emit(fragment string) {
	if fragment == "" {
		return
	}
	s.log.AppendOrAppendToTail(fragment, s.threshold())
}

func (s *Sink) threshold() time.Duration {
	if s.StaleAfter <= 0 {
		return DefaultStaleAfter
	}
	return s.StaleAfter
}
