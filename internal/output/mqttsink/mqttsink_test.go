package mqttsink_test

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/MrWong99/tdmdecode/internal/output"
	"github.com/MrWong99/tdmdecode/internal/output/mqttsink"
	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// ─── fakes ───────────────────────────────────────────────────────────────────

type token struct {
	err     error
	timeout bool
}

func (t *token) Wait() bool                     { return !t.timeout }
func (t *token) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *token) Error() error                   { return t.err }

func (t *token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	publishErr   error
	timeout      bool
	published    []message
	disconnected bool
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload any) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, message{topic: topic, qos: qos, payload: payload.([]byte)})
	return &token{err: c.publishErr, timeout: c.timeout}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.connected = false
}

// ─── tests ───────────────────────────────────────────────────────────────────

func TestSink_PublishesPerChannelTopic(t *testing.T) {
	t.Parallel()
	client := &fakeClient{connected: true}
	sink := mqttsink.NewWithClient(client, "bench/tdm", 1)

	words := []tdm.Word{
		{Start: 0, End: 15, Channel: 1, Value: 0xB001, Bits: 16},
		{Start: 15, End: 31, Channel: 2, Value: 0, Bits: 16},
	}
	for _, w := range words {
		if err := sink.Emit(w); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	if len(client.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(client.published))
	}
	for i, want := range []string{"bench/tdm/1", "bench/tdm/2"} {
		if got := client.published[i].topic; got != want {
			t.Errorf("message %d topic = %q, want %q", i, got, want)
		}
		if got := client.published[i].qos; got != 1 {
			t.Errorf("message %d qos = %d, want 1", i, got)
		}
	}

	var rec output.Record
	if err := json.Unmarshal(client.published[0].payload, &rec); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if rec.Hex != "b001" || rec.Channel != 1 || rec.Class != "ch1" || rec.End != 15 {
		t.Errorf("record = %+v", rec)
	}
}

func TestSink_NotConnected(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	sink := mqttsink.NewWithClient(client, "tdm", 0)

	err := sink.Emit(tdm.Word{Channel: 1, Bits: 16})
	if !errors.Is(err, mqttsink.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if len(client.published) != 0 {
		t.Errorf("published %d messages while disconnected", len(client.published))
	}
	if sink.Connected() {
		t.Error("Connected() = true, want false")
	}
}

func TestSink_PublishErrors(t *testing.T) {
	t.Parallel()
	brokerErr := errors.New("not authorized")
	tests := []struct {
		name   string
		client *fakeClient
		is     error
	}{
		{"broker error", &fakeClient{connected: true, publishErr: brokerErr}, brokerErr},
		{"timeout", &fakeClient{connected: true, timeout: true}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sink := mqttsink.NewWithClient(tc.client, "tdm", 0)
			err := sink.Emit(tdm.Word{Channel: 3, Bits: 8})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Errorf("err = %v, want wrapping %v", err, tc.is)
			}
		})
	}
}

func TestSink_Close(t *testing.T) {
	t.Parallel()
	client := &fakeClient{connected: true}
	sink := mqttsink.NewWithClient(client, "tdm", 0)
	if err := output.Close(sink); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !client.disconnected {
		t.Error("client was not disconnected")
	}
}
