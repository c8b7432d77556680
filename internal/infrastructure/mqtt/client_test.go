package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSubscribe_TracksAndDelivers(t *testing.T) {
	f := newFakePaho()
	c := connectedClient(f)

	var got []string
	err := c.Subscribe("home/+/temperature", 1, func(topic string, payload []byte) error {
		got = append(got, topic+"="+string(payload))
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if !f.Deliver("home/+/temperature", []byte("21.5")) {
		t.Fatal("no handler registered with the broker")
	}
	if len(got) != 1 || got[0] != "home/+/temperature=21.5" {
		t.Errorf("handler saw %v", got)
	}
	if c.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", c.SubscriptionCount())
	}
}

func TestSubscribe_Validation(t *testing.T) {
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		down    bool
		wantErr error
	}{
		{"empty topic", "", 0, noop, false, ErrInvalidTopic},
		{"qos 3", "a/b", 3, noop, false, ErrInvalidQoS},
		{"nil handler", "a/b", 0, nil, false, ErrSubscribeFailed},
		{"disconnected", "a/b", 0, noop, true, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakePaho()
			c := connectedClient(f)
			if tt.down {
				c.setConnected(false)
			}

			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
			if c.SubscriptionCount() != 0 {
				t.Error("rejected subscription should not be tracked")
			}
		})
	}
}

func TestSubscribe_BrokerErrorUntracks(t *testing.T) {
	f := newFakePaho()
	f.subscribeErr = errors.New("not authorised")
	c := connectedClient(f)

	err := c.Subscribe("home/door", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Fatalf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
	if !strings.Contains(err.Error(), "not authorised") {
		t.Errorf("error %q should carry the broker reason", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Error("failed subscription should not be restored on reconnect")
	}
}

func TestReconnect_RestoresSubscriptionsAndStatus(t *testing.T) {
	f := newFakePaho()
	c := connectedClient(f)
	reg := prometheus.NewRegistry()
	c.SetMetrics(NewMetrics(reg))

	for _, topic := range []string{"home/door", "home/boiler"} {
		if err := c.Subscribe(topic, 1, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	c.handleDisconnect(errors.New("EOF"))
	if c.IsConnected() {
		t.Error("IsConnected() should be false after connection lost")
	}
	if v := testutil.ToFloat64(c.metrics.connected); v != 0 {
		t.Errorf("connected gauge = %v, want 0", v)
	}

	f.subscribes = nil
	c.handleConnect()

	if len(f.subscribes) != 2 {
		t.Errorf("restored %v, want both topics", f.subscribes)
	}
	if v := testutil.ToFloat64(c.metrics.reconnects); v != 1 {
		t.Errorf("connection lost counter = %v, want 1", v)
	}
	if v := testutil.ToFloat64(c.metrics.connected); v != 1 {
		t.Errorf("connected gauge = %v, want 1", v)
	}

	msg := f.lastPublished()
	if msg.topic != "linepush/system/status" || !msg.retained {
		t.Fatalf("last publish = %+v, want retained system status", msg)
	}
	var p statusPayload
	if err := json.Unmarshal(msg.payload, &p); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if p.Status != statusOnline {
		t.Errorf("status = %q, want online", p.Status)
	}
}

func TestWrapHandler_CountsOutcomes(t *testing.T) {
	f := newFakePaho()
	c := connectedClient(f)
	c.SetMetrics(NewMetrics(prometheus.NewRegistry()))

	handlers := map[string]MessageHandler{
		"ok":    func(string, []byte) error { return nil },
		"bad":   func(string, []byte) error { return errors.New("not a number") },
		"panic": func(string, []byte) error { panic("boom") },
	}
	for topic, h := range handlers {
		if err := c.Subscribe(topic, 0, h); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
		f.Deliver(topic, []byte("x"))
	}

	for _, result := range []string{resultOK, resultError, resultPanic} {
		if v := testutil.ToFloat64(c.metrics.messages.WithLabelValues(result)); v != 1 {
			t.Errorf("messages{result=%s} = %v, want 1", result, v)
		}
	}
}

func TestPublish_Validation(t *testing.T) {
	big := make([]byte, maxPayloadSize+1)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 0, ErrInvalidTopic},
		{"single-level wildcard", "linepush/+/status", nil, 0, ErrInvalidTopic},
		{"multi-level wildcard", "linepush/#", nil, 0, ErrInvalidTopic},
		{"qos 3", "linepush/x", nil, 3, ErrInvalidQoS},
		{"oversized", "linepush/x", big, 0, ErrPublishFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := connectedClient(newFakePaho())
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublish_BrokerError(t *testing.T) {
	f := newFakePaho()
	f.publishErr = errors.New("quota exceeded")
	c := connectedClient(f)

	if err := c.Publish("linepush/x", []byte("1"), 1, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}

	c.setConnected(false)
	if err := c.Publish("linepush/x", []byte("1"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() while down error = %v, want ErrNotConnected", err)
	}
}

func TestPublishJSON_Retained(t *testing.T) {
	f := newFakePaho()
	c := connectedClient(f)

	status := struct {
		ID           string `json:"id"`
		BacklogDepth int    `json:"backlog_depth"`
	}{"main", 3}

	topic := Topics{}.DestinationStatus("main")
	if err := c.PublishJSON(topic, status); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	msg := f.lastPublished()
	if msg.topic != "linepush/destination/main/status" || !msg.retained || msg.qos != 1 {
		t.Errorf("published = %+v", msg)
	}
	if string(msg.payload) != `{"id":"main","backlog_depth":3}` {
		t.Errorf("payload = %s", msg.payload)
	}

	if err := c.PublishJSON(topic, func() {}); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON(func) error = %v, want ErrPublishFailed", err)
	}
}

func TestClose_PublishesGracefulOffline(t *testing.T) {
	f := newFakePaho()
	c := connectedClient(f)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !f.disconnected {
		t.Error("Close() should disconnect")
	}

	var p statusPayload
	if err := json.Unmarshal(f.lastPublished().payload, &p); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if p.Status != statusOffline || p.Reason != reasonGraceful {
		t.Errorf("status = %+v, want graceful offline", p)
	}
	if c.IsConnected() {
		t.Error("IsConnected() after Close should be false")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptions_Sorted(t *testing.T) {
	c := connectedClient(newFakePaho())
	for _, topic := range []string{"z/b", "a/c", "m/#"} {
		if err := c.Subscribe(topic, 0, func(string, []byte) error { return nil }); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	got := strings.Join(c.Subscriptions(), ",")
	if got != "a/c,m/#,z/b" {
		t.Errorf("Subscriptions() = %s", got)
	}
}

func TestAwait(t *testing.T) {
	if err := await(context.Background(), doneToken(nil), time.Second); err != nil {
		t.Errorf("await(done) error = %v", err)
	}

	brokerErr := errors.New("refused")
	if err := await(context.Background(), doneToken(brokerErr), time.Second); !errors.Is(err, brokerErr) {
		t.Errorf("await(failed) error = %v, want %v", err, brokerErr)
	}

	if err := await(context.Background(), pendingToken{}, 10*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("await(pending) error = %v, want ErrTimeout", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := await(ctx, pendingToken{}, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("await(cancelled) error = %v, want context.Canceled", err)
	}
}
