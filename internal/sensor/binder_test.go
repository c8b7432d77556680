package sensor

import (
	"errors"
	"testing"

	"github.com/nerrad567/linepush/internal/infrastructure/mqtt"
)

// fakeSubscriber records subscriptions instead of talking to a broker.
type fakeSubscriber struct {
	handlers map[string]mqtt.MessageHandler
	qos      map[string]byte
	err      error
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		handlers: make(map[string]mqtt.MessageHandler),
		qos:      make(map[string]byte),
	}
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if f.err != nil {
		return f.err
	}
	f.handlers[topic] = handler
	f.qos[topic] = qos
	return nil
}

func (f *fakeSubscriber) deliver(t *testing.T, topic, payload string) error {
	t.Helper()
	h, ok := f.handlers[topic]
	if !ok {
		t.Fatalf("no subscription for %s", topic)
	}
	return h(topic, []byte(payload))
}

func newBoundRegistry(t *testing.T) (*Registry, *Binder, *fakeSubscriber) {
	t.Helper()
	reg := NewRegistry()
	_ = reg.Add(NewBinary("door", "OPEN", "CLOSED"))
	_ = reg.Add(NewNumeric("temp", Calibration{}))
	_ = reg.Add(NewNumeric("humidity", Calibration{}))
	_ = reg.Add(NewText("mode", map[string]string{"1": "heating"}))

	sub := newFakeSubscriber()
	b := NewBinder(reg, sub, 1)

	for _, binding := range []Binding{
		{SensorID: "door", Topic: "home/door"},
		{SensorID: "temp", Topic: "home/climate", JSONKey: "temperature"},
		{SensorID: "humidity", Topic: "home/climate", JSONKey: "humidity"},
		{SensorID: "mode", Topic: "home/boiler/mode", JSONKey: "mode"},
	} {
		if err := b.Bind(binding); err != nil {
			t.Fatalf("Bind(%s) error = %v", binding.SensorID, err)
		}
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return reg, b, sub
}

func TestBinder_SharedTopicSubscribedOnce(t *testing.T) {
	_, b, sub := newBoundRegistry(t)

	if got := len(b.Topics()); got != 3 {
		t.Errorf("Topics() len = %d, want 3", got)
	}
	if len(sub.handlers) != 3 {
		t.Errorf("subscriptions = %d, want 3", len(sub.handlers))
	}
	if sub.qos["home/door"] != 1 {
		t.Errorf("qos = %d, want 1", sub.qos["home/door"])
	}
}

func TestBinder_DispatchesPayloads(t *testing.T) {
	reg, _, sub := newBoundRegistry(t)

	if err := sub.deliver(t, "home/door", "OPEN"); err != nil {
		t.Fatalf("deliver door error = %v", err)
	}
	if err := sub.deliver(t, "home/climate", `{"temperature": 21.5, "humidity": 40}`); err != nil {
		t.Fatalf("deliver climate error = %v", err)
	}
	if err := sub.deliver(t, "home/boiler/mode", `{"mode": 1}`); err != nil {
		t.Fatalf("deliver mode error = %v", err)
	}

	door, _ := reg.Binary("door")
	temp, _ := reg.Numeric("temp")
	hum, _ := reg.Numeric("humidity")
	mode, _ := reg.Text("mode")

	if !door.State() {
		t.Error("door State() = false, want true")
	}
	if temp.State() != 21.5 || hum.State() != 40 {
		t.Errorf("temp/humidity = %v/%v", temp.State(), hum.State())
	}
	if mode.State() != "heating" || mode.RawState() != "1" {
		t.Errorf("mode = %q (raw %q)", mode.State(), mode.RawState())
	}
}

func TestBinder_BadPayloadKeepsOtherSensors(t *testing.T) {
	reg, _, sub := newBoundRegistry(t)

	err := sub.deliver(t, "home/climate", `{"temperature": 19}`)
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("deliver error = %v, want ErrInvalidPayload", err)
	}

	temp, _ := reg.Numeric("temp")
	hum, _ := reg.Numeric("humidity")
	if !temp.HasState() || temp.State() != 19 {
		t.Errorf("temp not updated: %+v", temp.Snapshot())
	}
	if hum.HasState() {
		t.Error("humidity updated from payload without its key")
	}
}

func TestBinder_Errors(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Add(NewText("mode", nil))

	b := NewBinder(reg, newFakeSubscriber(), 0)
	if err := b.Start(); !errors.Is(err, ErrNotBound) {
		t.Errorf("Start() empty error = %v, want ErrNotBound", err)
	}
	if err := b.Bind(Binding{SensorID: "ghost", Topic: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Bind(unknown) error = %v, want ErrNotFound", err)
	}
	if err := b.Bind(Binding{SensorID: "mode"}); !errors.Is(err, mqtt.ErrInvalidTopic) {
		t.Errorf("Bind(no topic) error = %v, want ErrInvalidTopic", err)
	}

	sub := newFakeSubscriber()
	sub.err = mqtt.ErrNotConnected
	b = NewBinder(reg, sub, 0)
	_ = b.Bind(Binding{SensorID: "mode", Topic: "x"})
	if err := b.Start(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestExtractJSONValue(t *testing.T) {
	tests := []struct {
		payload string
		key     string
		want    string
		wantErr bool
	}{
		{`{"v": "abc"}`, "v", "abc", false},
		{`{"v": 1.25}`, "v", "1.25", false},
		{`{"v": true}`, "v", "true", false},
		{`{"v": [1,2]}`, "v", "[1,2]", false},
		{`{"v": null}`, "v", "", true},
		{`{"w": 1}`, "v", "", true},
		{`17`, "v", "", true},
	}

	for _, tt := range tests {
		got, err := extractJSONValue([]byte(tt.payload), tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("extractJSONValue(%s) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("extractJSONValue(%s) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}
