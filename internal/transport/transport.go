// SPDX-License-Identifier: MIT
/*
Package transport publishes inference results outside the process.

Every ready result of a session becomes an Event carrying the smoothed
scores, timings and any detections. Transports must be safe for concurrent
use and must never block the inference loop: a slow consumer loses events
rather than delaying the next slice.
*/
package transport

import (
	"time"

	"kws/internal/classifier"
	"kws/internal/pipeline"
)

// Transport defines a generic interface for sending processed data or events.
type Transport interface {
	Send(data any) error
	Close() error
}

// Event is the published form of one ready result.
type Event struct {
	Session    string               `json:"session"`
	Time       time.Time            `json:"time"`
	Slice      uint64               `json:"slice"`
	Scores     []classifier.Score   `json:"scores"`
	Anomaly    *float64             `json:"anomaly,omitempty"`
	Timing     pipeline.Timing      `json:"timing"`
	Detections []pipeline.Detection `json:"detections,omitempty"`
}

// NewEvent snapshots res. The scores are copied so the caller may reuse res.
func NewEvent(session string, res *pipeline.Result, detections []pipeline.Detection) Event {
	ev := Event{
		Session:    session,
		Time:       time.Now(),
		Slice:      res.Slice,
		Scores:     append([]classifier.Score(nil), res.Scores...),
		Timing:     res.Timing,
		Detections: detections,
	}
	if res.HasAnomaly {
		a := res.Anomaly
		ev.Anomaly = &a
	}
	return ev
}

// Multi fans one Send out to several transports. Every transport is tried;
// the first error is returned.
type Multi []Transport

func (m Multi) Send(data any) error {
	var first error
	for _, t := range m {
		if err := t.Send(data); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, t := range m {
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Transport = Multi(nil)
