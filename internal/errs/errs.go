// SPDX-License-Identifier: MIT
//
// Package errs defines the failure taxonomy shared by the capture, DSP and
// classification stages. Callers wrap these sentinels with fmt.Errorf("...: %w")
// and match them with errors.Is.
package errs

import "errors"

var (
	ErrOutOfMemory        = errors.New("out of memory")
	ErrOutOfBounds        = errors.New("out of bounds")
	ErrMatrixSizeMismatch = errors.New("matrix size mismatch")
	ErrParameterInvalid   = errors.New("parameter invalid")
	ErrDSP                = errors.New("dsp error")
	ErrCanceled           = errors.New("canceled")
	ErrInferenceEngine    = errors.New("inference engine error")
	ErrBufferOverrun      = errors.New("audio buffer overrun")
	ErrNotRunning         = errors.New("capture not running")
)

// Status codes reported in log lines. They follow the numbering used by
// embedded inferencing runtimes so logs can be compared side by side.
const (
	StatusOK                 = 0
	StatusOutOfMemory        = -1002
	StatusOutOfBounds        = -1003
	StatusMatrixSizeMismatch = -1004
	StatusParameterInvalid   = -1008
	StatusDSP                = -5
	StatusCanceled           = -7
	StatusInferenceEngine    = -6
	StatusBufferOverrun      = -1010
	StatusNotRunning         = -1011
	StatusUnknown            = -1
)

var codes = []struct {
	err  error
	code int
}{
	// Specific causes are matched first so a wrapped DSP failure still reports
	// its underlying numeric status.
	{ErrOutOfMemory, StatusOutOfMemory},
	{ErrOutOfBounds, StatusOutOfBounds},
	{ErrMatrixSizeMismatch, StatusMatrixSizeMismatch},
	{ErrParameterInvalid, StatusParameterInvalid},
	{ErrCanceled, StatusCanceled},
	{ErrBufferOverrun, StatusBufferOverrun},
	{ErrNotRunning, StatusNotRunning},
	{ErrInferenceEngine, StatusInferenceEngine},
	{ErrDSP, StatusDSP},
}

// Code maps err to a numeric status. nil maps to StatusOK.
func Code(err error) int {
	if err == nil {
		return StatusOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return StatusUnknown
}
