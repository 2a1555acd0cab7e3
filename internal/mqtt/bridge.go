package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"homelink/internal/logging"
	"homelink/internal/models"
	"homelink/internal/queue"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	// EventsTopic carries device-originated events
	EventsTopic = "devices/+/events"
	qos         = 1
)

// CommandsTopic is where command hints for a device are published
func CommandsTopic(deviceID int64) string {
	return fmt.Sprintf("devices/%d/commands", deviceID)
}

// ParseDeviceID extracts the device id from devices/<id>/...
func ParseDeviceID(topic string) (int64, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[0] != "devices" {
		return 0, fmt.Errorf("%w: unexpected topic %q", models.ErrValidation, topic)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad device id in topic %q", models.ErrValidation, topic)
	}
	return id, nil
}

// EventSink receives device events as self-executing commands
type EventSink interface {
	Enqueue(ctx context.Context, caller models.Caller, req queue.EnqueueRequest) (*models.Command, error)
}

// DeviceLookup resolves the device behind a topic
type DeviceLookup interface {
	GetDevice(ctx context.Context, id int64) (*models.Device, error)
}

// Bridge connects the command queue to an MQTT broker
type Bridge struct {
	client  MQTT.Client
	sink    EventSink
	devices DeviceLookup
	log     zerolog.Logger
}

// NewBridge creates a bridge
func NewBridge(client MQTT.Client, sink EventSink, devices DeviceLookup) *Bridge {
	return &Bridge{client: client, sink: sink, devices: devices, log: logging.Component("mqtt")}
}

// Start subscribes to device events
func (b *Bridge) Start() error {
	b.log.Info().Str("topic", EventsTopic).Msg("subscribing to device events")
	token := b.client.Subscribe(EventsTopic, qos, func(_ MQTT.Client, msg MQTT.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.HandleEvent(ctx, msg.Topic(), msg.Payload()); err != nil {
			b.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("dropped device event")
		}
	})
	token.Wait()
	return token.Error()
}

// Stop disconnects from the broker
func (b *Bridge) Stop() {
	b.client.Disconnect(250)
	b.log.Info().Msg("mqtt bridge stopped")
}

// CommandQueued publishes a hint so connected devices can poll right away
func (b *Bridge) CommandQueued(_ context.Context, c *models.Command) {
	payload, err := json.Marshal(c)
	if err != nil {
		return
	}
	token := b.client.Publish(CommandsTopic(c.DeviceID), qos, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			b.log.Warn().Err(token.Error()).Int64("device_id", c.DeviceID).Msg("failed to publish command hint")
		}
	}()
}

// HandleEvent turns a devices/<id>/events message into a self-executing command
func (b *Bridge) HandleEvent(ctx context.Context, topic string, payload []byte) error {
	deviceID, err := ParseDeviceID(topic)
	if err != nil {
		return err
	}
	var data models.CommandPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("%w: event body: %v", models.ErrValidation, err)
	}

	dev, err := b.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}
	caller := models.HumanCaller(dev.OwnerID)
	if dev.AccountID != nil {
		caller = models.DeviceCaller(*dev.AccountID, dev.OwnerID)
	}

	_, err = b.sink.Enqueue(ctx, caller, queue.EnqueueRequest{
		DeviceID:    &deviceID,
		Data:        data,
		SelfExecute: true,
	})
	if err == nil {
		b.log.Debug().Int64("device_id", deviceID).Str("component_name", data.Name).Str("action", data.Action).Msg("device event ingested")
	}
	return err
}
