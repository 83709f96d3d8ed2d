package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "upnpd-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to a local broker, skipping the test when none
// is running.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg)
	if err != nil {
		t.Skipf("no MQTT broker at 127.0.0.1:1883: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Info(string, ...any) {}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// =============================================================================
// Offline Tests
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "upnp/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "upnp/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "upnp/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", "upnp/#", 3, handler, ErrInvalidQoS},
		{"nil handler", "upnp/#", 1, nil, ErrSubscribeFailed},
		{"not connected", "upnp/#", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if tracked(client, "upnp/#") {
		t.Error("failed subscribe left a tracked subscription")
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "upnpd"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "upnpd-test" || opts.Username != "upnpd" {
		t.Errorf("ClientID/Username = %q/%q", opts.ClientID, opts.Username)
	}
	if !opts.AutoReconnect || opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("reconnect = %v/%v", opts.AutoReconnect, opts.MaxReconnectInterval)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig not set")
	}
}

func TestBuildClientOptions_ReconnectDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect.InitialDelay = 0
	cfg.Reconnect.MaxDelay = -1

	opts := buildClientOptions(cfg)

	if opts.ConnectRetryInterval != defaultRetryDelay || opts.MaxReconnectInterval != defaultMaxDelay {
		t.Errorf("retry/max = %v/%v, want %v/%v",
			opts.ConnectRetryInterval, opts.MaxReconnectInterval, defaultRetryDelay, defaultMaxDelay)
	}
	if opts.TLSConfig != nil || opts.Servers[0].Scheme != "tcp" {
		t.Errorf("plain broker got TLS %v, scheme %q", opts.TLSConfig, opts.Servers[0].Scheme)
	}
	if !opts.CleanSession {
		t.Error("CleanSession = false; stale commands would be replayed")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "upnpd-test")

	if !opts.WillEnabled || opts.WillTopic != "upnp/system/status" || !opts.WillRetained {
		t.Fatalf("will = %v %q retained=%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var msg StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload: %v", err)
	}
	if msg.Status != "offline" || msg.Reason != "unexpected_disconnect" || msg.ClientID != "upnpd-test" {
		t.Errorf("will = %+v", msg)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		payload    string
		wantStatus string
		wantReason string
	}{
		{buildOnlinePayload("upnpd"), "online", ""},
		{buildOfflinePayload("upnpd"), "offline", "graceful_shutdown"},
	}

	for _, tt := range tests {
		var msg StatusMessage
		if err := json.Unmarshal([]byte(tt.payload), &msg); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.payload, err)
		}
		if msg.Status != tt.wantStatus || msg.Reason != tt.wantReason || msg.Timestamp.IsZero() {
			t.Errorf("payload %s = %+v", tt.payload, msg)
		}
	}
}

func TestTopicBuilders(t *testing.T) {
	const udn = "2fac1234-31f8-11b4-a222-08002b34c003"
	topics := Topics{}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"State", topics.State(udn, "SwitchPower"), "upnp/state/" + udn + "/SwitchPower"},
		{"Command", topics.Command(udn, "SwitchPower"), "upnp/command/" + udn + "/SwitchPower"},
		{"Ack", topics.Ack(udn, "SwitchPower"), "upnp/ack/" + udn + "/SwitchPower"},
		{"Received", topics.Received(udn, "ContentDirectory"), "upnp/received/" + udn + "/ContentDirectory"},
		{"SystemStatus", topics.SystemStatus(), "upnp/system/status"},
		{"AllStates", topics.AllStates(), "upnp/state/+/+"},
		{"AllCommands", topics.AllCommands(), "upnp/command/+/+"},
		{"AllAcks", topics.AllAcks(), "upnp/ack/+/+"},
		{"AllTopics", topics.AllTopics(), "upnp/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestSetLogger_NilRestoresDefault(t *testing.T) {
	client := &Client{}
	if _, ok := client.getLogger().(noopLogger); !ok {
		t.Error("zero Client should log nowhere")
	}
	client.SetLogger(&mockLogger{})
	client.SetLogger(nil)
	if _, ok := client.getLogger().(noopLogger); !ok {
		t.Error("SetLogger(nil) should restore the silent default")
	}

	// Handler errors on a silent client must not panic.
	client.wrapHandler(func(string, []byte) error { return errors.New("boom") })(nil, fakeMessage{topic: "upnp/test"})
}

func TestUnsubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe(Topics{}.AllCommands()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() offline error = %v, want ErrNotConnected", err)
	}
}

func TestWrapHandler_RecoversAndLogs(t *testing.T) {
	logger := &mockLogger{}
	client := &Client{}
	client.SetLogger(logger)

	failing := client.wrapHandler(func(string, []byte) error { return errors.New("boom") })
	failing(nil, fakeMessage{topic: "upnp/test"})

	panicking := client.wrapHandler(func(string, []byte) error { panic("bad handler") })
	panicking(nil, fakeMessage{topic: "upnp/test"})

	if len(logger.warns) != 1 || len(logger.errors) != 1 {
		t.Errorf("warns = %v, errors = %v", logger.warns, logger.errors)
	}
}

// fakeMessage satisfies pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// =============================================================================
// Broker Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t, "upnpd-test-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	pub := connectOrSkip(t, "upnpd-test-pub")
	sub := connectOrSkip(t, "upnpd-test-sub")

	topic := Topics{}.State("roundtrip-udn", "SwitchPower")
	expected := `{"values":{"Status":"1"}}`

	received := make(chan string, 1)
	var once sync.Once
	err := sub.Subscribe(Topics{}.AllStates(), 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !tracked(sub, Topics{}.AllStates()) {
		t.Error("subscription not tracked")
	}

	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(topic, []byte(expected), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != expected {
			t.Errorf("Received = %q, want %q", msg, expected)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}

func TestUnsubscribe(t *testing.T) {
	client := connectOrSkip(t, "upnpd-test-unsub")
	handler := func(string, []byte) error { return nil }
	commands := Topics{}.AllCommands()
	acks := Topics{}.AllAcks()

	for _, topic := range []string{commands, acks} {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if err := client.Unsubscribe(commands); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if tracked(client, commands) || !tracked(client, acks) {
		t.Error("Unsubscribe() should drop only the command subscription")
	}
}

// tracked reports whether topic would be restored on reconnect.
func tracked(c *Client, topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}
