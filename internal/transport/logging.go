// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"

	applog "kws/internal/log"
)

// LoggingTransport implements the Transport interface by logging data.
// Detections are logged at info level, everything else at debug level.
type LoggingTransport struct{}

func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	if ev, ok := data.(Event); ok {
		for _, d := range ev.Detections {
			applog.Infof("LOG_TRANSPORT: slice %d detected %q (%.5f)", d.Slice, d.Label, d.Score)
		}
	}
	if applog.GetLevel() > applog.LevelDebug {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		applog.Debugf("LOG_TRANSPORT: Received (%T): %+v (JSON marshal error: %v)", data, data, err)
		return nil
	}
	applog.Debugf("LOG_TRANSPORT: Received (%T): %s", data, jsonData)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
