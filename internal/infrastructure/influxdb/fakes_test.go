package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/linepush/internal/clock"
	"github.com/nerrad567/linepush/internal/infrastructure/influxdb"
)

// result scripts one transport outcome.
type result struct {
	status  int
	err     error
	nilResp bool
}

var (
	accepted   = result{status: http.StatusNoContent}
	serverDown = result{err: errors.New("connection refused")}
	badStatus  = result{status: http.StatusInternalServerError}
)

type call struct {
	url    string
	body   string
	header http.Header
}

// trackedBody records whether it was fully read and closed.
type trackedBody struct {
	r      io.Reader
	read   bool
	closed bool
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		b.read = true
	}
	return n, err
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

// fakeTransport returns scripted results in order; once exhausted every
// call succeeds.
type fakeTransport struct {
	mu      sync.Mutex
	results []result
	calls   []call
	bodies  []*trackedBody
}

func (f *fakeTransport) script(rs ...result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, rs...)
}

func (f *fakeTransport) Post(_ context.Context, url, body string, header http.Header) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, call{url: url, body: body, header: header.Clone()})

	r := accepted
	if len(f.results) > 0 {
		r = f.results[0]
		f.results = f.results[1:]
	}

	switch {
	case r.err != nil:
		return nil, r.err
	case r.nilResp:
		return nil, nil
	}

	b := &trackedBody{r: strings.NewReader(`{"ok":true}`)}
	f.bodies = append(f.bodies, b)
	return &http.Response{StatusCode: r.status, Body: b}, nil
}

func (f *fakeTransport) bodiesSent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.body
	}
	return out
}

// tickingClock advances one second on every read.
func tickingClock(start int64) clock.Clock {
	var mu sync.Mutex
	next := start
	return clock.Func(func() (time.Time, bool) {
		mu.Lock()
		defer mu.Unlock()
		t := time.Unix(next, 0)
		next++
		return t, true
	})
}

// fakeRecorder collects delivery events.
type fakeRecorder struct {
	mu     sync.Mutex
	events []influxdb.Event
	err    error
}

func (r *fakeRecorder) RecordDelivery(_ context.Context, e influxdb.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *fakeRecorder) kinds() []influxdb.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]influxdb.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}
