package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sluicekit/sluice/config"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeClient struct {
	mu           sync.Mutex
	connectErr   error
	subscribeErr error
	handler      paho.MessageHandler
	subscribed   string
	qos          byte
	unsubscribed []string
	disconnected bool
}

func (c *fakeClient) Connect() paho.Token {
	return newFakeToken(c.connectErr)
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = topic
	c.qos = qos
	c.handler = callback
	return newFakeToken(c.subscribeErr)
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	return newFakeToken(nil)
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) deliver(msg paho.Message) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	handler(nil, msg)
}

type fakeMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return m.retained }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		BrokerURL: "tcp://broker:1883",
		ClientID:  "ingest-1",
		Topic:     "sensors/#",
		QoS:       1,
		Buffer:    4,
	}
}

func TestSource_StartConnectsAndSubscribes(t *testing.T) {
	client := &fakeClient{}
	source := newSourceWithClient(client, testConfig(), nil)

	if err := source.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if client.subscribed != "sensors/#" {
		t.Errorf("subscribed topic = %q, want sensors/#", client.subscribed)
	}
	if client.qos != 1 {
		t.Errorf("subscribed qos = %d, want 1", client.qos)
	}
}

func TestSource_StartConnectError(t *testing.T) {
	wantErr := errors.New("broker unreachable")
	source := newSourceWithClient(&fakeClient{connectErr: wantErr}, testConfig(), nil)

	err := source.Start(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Start() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestSource_StartSubscribeError(t *testing.T) {
	wantErr := errors.New("not authorized")
	source := newSourceWithClient(&fakeClient{subscribeErr: wantErr}, testConfig(), nil)

	err := source.Start(context.Background())
	if !errors.Is(err, wantErr) {
		t.Errorf("Start() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestSource_DeliversMessages(t *testing.T) {
	client := &fakeClient{}
	source := newSourceWithClient(client, testConfig(), nil)
	if err := source.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	client.deliver(fakeMessage{topic: "sensors/temp", payload: []byte("21.5"), retained: true})

	select {
	case record := <-source.Records():
		if record.Topic != "sensors/temp" {
			t.Errorf("record.Topic = %q, want sensors/temp", record.Topic)
		}
		if string(record.Payload) != "21.5" {
			t.Errorf("record.Payload = %q, want 21.5", record.Payload)
		}
		if !record.Retained {
			t.Error("record.Retained = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("no record within 1s")
	}
}

func TestSource_DropsWhenBufferFull(t *testing.T) {
	cfg := testConfig()
	cfg.Buffer = 1
	client := &fakeClient{}
	source := newSourceWithClient(client, cfg, nil)
	if err := source.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	client.deliver(fakeMessage{topic: "sensors/a", payload: []byte("kept")})
	client.deliver(fakeMessage{topic: "sensors/b", payload: []byte("dropped")})

	var got []string
	for {
		select {
		case record := <-source.Records():
			got = append(got, string(record.Payload))
			continue
		default:
		}
		break
	}
	if len(got) != 1 || got[0] != "kept" {
		t.Errorf("delivered = %v, want [kept]", got)
	}
}

func TestSource_Close(t *testing.T) {
	client := &fakeClient{}
	source := newSourceWithClient(client, testConfig(), nil)
	if err := source.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := source.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if len(client.unsubscribed) != 1 || client.unsubscribed[0] != "sensors/#" {
		t.Errorf("unsubscribed = %v, want [sensors/#]", client.unsubscribed)
	}
	if !client.disconnected {
		t.Error("client not disconnected")
	}
	if _, ok := <-source.Records(); ok {
		t.Error("Records() delivered a record, want closed channel")
	}

	// deliveries after close are ignored rather than panicking on the
	// closed channel
	client.deliver(fakeMessage{topic: "sensors/late", payload: []byte("x")})

	if err := source.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestSource_AckAndNackAreNoOps(t *testing.T) {
	source := newSourceWithClient(&fakeClient{}, testConfig(), nil)

	record := Message{Topic: "sensors/temp"}
	if err := source.Ack(context.Background(), record); err != nil {
		t.Errorf("Ack() error = %v, want nil", err)
	}
	if err := source.Nack(context.Background(), record, errors.New("collector full")); err != nil {
		t.Errorf("Nack() error = %v, want nil", err)
	}
}

func TestNewSource_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MQTTConfig
	}{
		{"empty broker url", config.MQTTConfig{Topic: "sensors/#"}},
		{"empty topic", config.MQTTConfig{BrokerURL: "tcp://broker:1883"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("NewSource(%s) did not panic", tt.name)
				}
			}()
			NewSource(tt.cfg, nil)
		})
	}
}
