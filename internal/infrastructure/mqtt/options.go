package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hollowgate/irfleet-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	maxQoS                   = 2

	tlsMinVersion = tls.VersionTLS12

	lwtQoS = 1
)

// buildClientOptions translates the mqtt section of config.yaml into
// paho client options: broker URL, credentials, clean session,
// reconnect backoff bounds, and TLS when the broker requires it.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// No persistent broker-side session: irfleetd never subscribes, so
	// there is nothing for a resumed session to redeliver.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// statusPayload is the JSON shape published to Topics{}.SystemStatus,
// both by the LWT (broker-published on an unexpected drop) and by the
// client itself (on connect and graceful Close).
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// buildStatusPayload marshals a system status message. reason is
// omitted for the online status; set for the two offline cases
// ("unexpected_disconnect" from the LWT, "graceful_shutdown" from Close).
func buildStatusPayload(clientID, status, reason string) ([]byte, error) {
	return json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// configureLWT arranges for the broker to publish a retained offline
// status on Topics{}.SystemStatus if this client disconnects without
// calling Close — the only way another service can tell a crashed
// irfleetd apart from a quiet one.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	payload, err := buildStatusPayload(clientID, "offline", "unexpected_disconnect")
	if err != nil {
		// Marshaling a struct of static-shape strings cannot fail; if it
		// somehow did, connecting with no LWT is safer than panicking.
		return
	}
	opts.SetWill(Topics{}.SystemStatus(), string(payload), lwtQoS, true)
}
