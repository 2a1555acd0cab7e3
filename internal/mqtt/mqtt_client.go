package mqtt

import (
	"fmt"
	"time"

	"homelink/internal/logging"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// NewClient connects to the broker. The session is persistent so the event
// subscription survives reconnects without being re-issued.
func NewClient(broker, clientID string) (MQTT.Client, error) {
	log := logging.Component("mqtt")

	opts := MQTT.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetCleanSession(false).
		SetResumeSubs(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ MQTT.Client, err error) {
			log.Warn().Err(err).Str("broker", broker).Msg("connection lost")
		}).
		SetReconnectingHandler(func(_ MQTT.Client, _ *MQTT.ClientOptions) {
			log.Info().Str("broker", broker).Msg("reconnecting")
		}).
		SetOnConnectHandler(func(MQTT.Client) {
			log.Info().Str("broker", broker).Str("client_id", clientID).Msg("connected")
		})

	c := MQTT.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return c, nil
}
