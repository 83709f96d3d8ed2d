package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultKeepAlive         = 60 * time.Second
	defaultDisconnectQuiesce = 1000 // ms

	defaultRetryDelay = time.Second
	defaultMaxDelay   = time.Minute

	maxQoS         = 2
	maxPayloadSize = 1 << 20
)

// Reasons carried by the offline status.
const (
	reasonShutdown   = "graceful_shutdown"
	reasonDisconnect = "unexpected_disconnect"
)

// buildClientOptions maps the mqtt section of config.yaml onto paho.
//
// Sessions are clean: the command subscription is restored by the client
// itself after a reconnect, and stale commands queued while upnpd was
// down must not be replayed against devices.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(scheme + "://" + net.JoinHostPort(cfg.Broker.Host, strconv.Itoa(cfg.Broker.Port))).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(seconds(cfg.Reconnect.InitialDelay, defaultRetryDelay)).
		SetMaxReconnectInterval(seconds(cfg.Reconnect.MaxDelay, defaultMaxDelay)).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// StatusMessage is the retained payload of upnp/system/status. Consumers
// of the retained state topics check it to know whether those values are
// still maintained.
type StatusMessage struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// configureLWT registers the offline status the broker publishes when
// upnpd drops off without Close.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(Topics{}.SystemStatus(), statusPayload("offline", clientID, reasonDisconnect), 1, true)
}

func buildOnlinePayload(clientID string) string {
	return statusPayload("online", clientID, "")
}

func buildOfflinePayload(clientID string) string {
	return statusPayload("offline", clientID, reasonShutdown)
}

func statusPayload(status, clientID, reason string) string {
	payload, err := json.Marshal(StatusMessage{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return fmt.Sprintf(`{"status":%q}`, status)
	}
	return string(payload)
}
