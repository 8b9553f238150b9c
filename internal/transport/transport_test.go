// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"kws/internal/classifier"
	applog "kws/internal/log"
	"kws/internal/pipeline"
)

func testResult() *pipeline.Result {
	return &pipeline.Result{
		Slice:      12,
		Ready:      true,
		Scores:     []classifier.Score{{Label: "yes", Value: 0.9}, {Label: "no", Value: 0.1}},
		Anomaly:    -0.25,
		HasAnomaly: true,
	}
}

func TestNewEvent(t *testing.T) {
	res := testResult()
	ev := NewEvent("abc", res, []pipeline.Detection{{Label: "yes", Score: 0.9}})

	res.Scores[0].Value = 0
	if ev.Scores[0].Value != 0.9 {
		t.Error("event shares score storage with the result")
	}
	if ev.Anomaly == nil || *ev.Anomaly != -0.25 {
		t.Errorf("anomaly = %v", ev.Anomaly)
	}
	if ev.Session != "abc" || ev.Slice != 12 || len(ev.Detections) != 1 {
		t.Errorf("event = %+v", ev)
	}

	res.HasAnomaly = false
	if ev := NewEvent("abc", res, nil); ev.Anomaly != nil {
		t.Error("anomaly set without a scorer")
	}
}

type recordingTransport struct {
	sent   []any
	err    error
	closed bool
}

func (r *recordingTransport) Send(data any) error {
	r.sent = append(r.sent, data)
	return r.err
}

func (r *recordingTransport) Close() error {
	r.closed = true
	return r.err
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a, b := &recordingTransport{err: boom}, &recordingTransport{}
	m := Multi{a, b}

	if err := m.Send("x"); !errors.Is(err, boom) {
		t.Errorf("Send error = %v", err)
	}
	if len(b.sent) != 1 {
		t.Error("failing transport stopped the fan-out")
	}
	if err := m.Close(); !errors.Is(err, boom) || !a.closed || !b.closed {
		t.Errorf("Close = %v, closed %v %v", err, a.closed, b.closed)
	}
}

func TestLoggingTransport(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	defer applog.SetOutput(os.Stderr)

	lt := NewLoggingTransport()
	ev := NewEvent("abc", testResult(), []pipeline.Detection{{Label: "yes", Score: 0.9, Slice: 12}})
	if err := lt.Send(ev); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `slice 12 detected "yes"`) {
		t.Errorf("detection not logged:\n%s", buf.String())
	}
	if err := lt.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	wst := NewWebSocketTransport("", "/ws")
	defer wst.Close()
	srv := httptest.NewServer(wst.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	want := NewEvent("session-1", testResult(), nil)
	if err := wst.Send(want); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Session != "session-1" || got.Slice != 12 || len(got.Scores) != 2 || got.Scores[0].Label != "yes" {
		t.Errorf("received %+v", got)
	}

	if err := wst.Close(); err != nil {
		t.Fatal(err)
	}
	if err := wst.Send(want); err == nil {
		t.Error("Send after Close succeeded")
	}
}
