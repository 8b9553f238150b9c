// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

// fakeDevices replaces the PortAudio device table for the duration of a test.
func fakeDevices(t *testing.T, devices []*portaudio.DeviceInfo, def *portaudio.DeviceInfo) {
	t.Helper()
	origDevices, origDefault := paLibDevicesFunc, paLibDefaultInputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc, paLibDefaultInputDeviceFunc = origDevices, origDefault
	})
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		if def == nil {
			return nil, fmt.Errorf("no default input device")
		}
		return def, nil
	}
}

func testDeviceTable() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000,
			DefaultLowInputLatency: 3 * time.Millisecond, DefaultHighInputLatency: 12 * time.Millisecond},
		{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{Name: "USB Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 16000},
	}
}

func TestHostDevices(t *testing.T) {
	fakeDevices(t, testDeviceTable(), nil)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
	}

	in, err := InputDevices()
	if err != nil {
		t.Fatal(err)
	}
	if len(in) != 2 || in[0].Name != "Built-in Microphone" || in[1].ID != 2 {
		t.Errorf("InputDevices = %+v", in)
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevice(t *testing.T) {
	table := testDeviceTable()
	fakeDevices(t, table, table[0])

	if dev, err := InputDevice(-1); err != nil || dev.Name != "Built-in Microphone" {
		t.Errorf("default device = %v, %v", dev, err)
	}
	if dev, err := InputDevice(2); err != nil || dev.Name != "USB Interface" {
		t.Errorf("device 2 = %v, %v", dev, err)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(table) + 10, "invalid device ID"},
		{"Non-input device", 1, "does not support input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	fakeDevices(t, testDeviceTable(), nil)

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "no default input device") {
		t.Errorf("expected default device error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	fakeDevices(t, testDeviceTable(), nil)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"[1] Built-in Output (Output)",
		"[2] USB Interface (Input/Output)",
		"Default sample rate: 16000 Hz",
		"Latency: Low=3.00ms, High=12.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	fakeDevices(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}
