package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/ports"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type published struct {
	topic   string
	payload []byte
}

// fakeClient embeds paho.Client so unused methods panic if called.
type fakeClient struct {
	paho.Client

	mu         sync.Mutex
	connected  bool
	handler    paho.MessageHandler
	subscribed string
	published  []published
	publishErr error
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Connect() paho.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return doneToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = topic
	c.handler = cb
	return doneToken{}
}

func (c *fakeClient) Unsubscribe(...string) paho.Token { return doneToken{} }

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, payload: payload.([]byte)})
	return doneToken{err: c.publishErr}
}

func (c *fakeClient) deliver(topic string, payload []byte) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(c, fakeMessage{topic: topic, payload: payload})
}

func TestChannel_StartAndDeliver(t *testing.T) {
	client := &fakeClient{}
	ch := New(Config{TopicPrefix: "living-room"}, WithClient(client))

	var got []ports.Inbound
	if err := ch.Start(context.Background(), func(in ports.Inbound) { got = append(got, in) }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !ch.Connected() {
		t.Error("Connected() = false after Start")
	}
	if client.subscribed != "living-room/in/+" {
		t.Errorf("subscribed to %q", client.subscribed)
	}

	client.deliver("living-room/in/phone", []byte(`{"type":"PLAYING"}`))
	client.deliver("living-room/in/tablet", []byte{0x81, 0xa4})
	client.deliver("living-room/in/a/b", []byte(`{}`))
	client.deliver("other/in/phone", []byte(`{}`))

	if len(got) != 2 {
		t.Fatalf("delivered %d records, want 2", len(got))
	}
	if got[0].SenderID != "phone" || got[0].Format != ports.FormatJSON {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].SenderID != "tablet" || got[1].Format != ports.FormatMsgpack {
		t.Errorf("second = %+v", got[1])
	}
}

func TestChannel_Send(t *testing.T) {
	client := &fakeClient{}
	ch := New(Config{}, WithClient(client))
	if err := ch.Start(context.Background(), func(ports.Inbound) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := ch.Send(context.Background(), "phone", []byte("req"), ports.FormatJSON); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(client.published) != 1 || client.published[0].topic != "subcast/out/phone" || string(client.published[0].payload) != "req" {
		t.Errorf("published = %+v", client.published)
	}

	client.publishErr = errors.New("broker refused")
	if err := ch.Send(context.Background(), "phone", []byte("req"), ports.FormatJSON); !errors.Is(err, client.publishErr) {
		t.Errorf("Send() error = %v, want wrapped publish error", err)
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("client still connected after Close")
	}
	if err := ch.Send(context.Background(), "phone", nil, ports.FormatJSON); !errors.Is(err, domain.ErrChannelClosed) {
		t.Errorf("Send() after close error = %v", err)
	}
	if err := ch.Start(context.Background(), func(ports.Inbound) {}); !errors.Is(err, domain.ErrChannelClosed) {
		t.Errorf("Start() after close error = %v", err)
	}
}

func TestChannel_ClientOptions(t *testing.T) {
	ch := New(Config{Broker: "localhost:1883", ClientID: "receiver-1"})
	opts := ch.clientOptions()

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://localhost:1883" {
		t.Errorf("Servers = %v", opts.Servers)
	}
	if opts.ClientID != "receiver-1" || !opts.AutoReconnect {
		t.Errorf("ClientID = %q, AutoReconnect = %v", opts.ClientID, opts.AutoReconnect)
	}
}
