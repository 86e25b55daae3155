package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/posetrack/internal/config"
	"github.com/san-kum/posetrack/internal/device"
)

// DeviceMessage is one entry of the retained <prefix>/devices list.
type DeviceMessage struct {
	ID        int    `json:"id"`
	Class     string `json:"class"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// PoseMessage is published on <prefix>/pose/<id>. M is the row-major 3x4
// device-to-tracking matrix.
type PoseMessage struct {
	Valid bool          `json:"valid"`
	M     [3][4]float64 `json:"m"`
}

type entry struct {
	pose     device.Pose
	valid    bool
	received time.Time
}

// Bridge mirrors a pose bridge's MQTT topics into an in-memory cache.
// QueryPose only reads the cache, so it never waits on the network.
type Bridge struct {
	client    mqtt.Client
	prefix    string
	staleness time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	devices   map[device.ID]DeviceMessage
	poses     map[device.ID]entry
	listReady chan struct{}
	listOnce  sync.Once
}

func newBridge(prefix string, staleness time.Duration) *Bridge {
	return &Bridge{
		prefix:    strings.TrimSuffix(prefix, "/"),
		staleness: staleness,
		now:       time.Now,
		devices:   make(map[device.ID]DeviceMessage),
		poses:     make(map[device.ID]entry),
		listReady: make(chan struct{}),
	}
}

// Open connects to the broker, subscribes to the bridge topics and waits
// up to the connect timeout for the retained device list.
func Open(ctx context.Context, cfg *config.Config) (device.Runtime, error) {
	mc := cfg.MQTT
	b := newBridge(mc.TopicPrefix, mc.Staleness)

	opts := mqtt.NewClientOptions().
		AddBroker(mc.Broker).
		SetClientID(mc.ClientID).
		SetConnectTimeout(mc.ConnectTimeout).
		SetAutoReconnect(true)

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(mc.ConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out after %v", mc.Broker, mc.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", mc.Broker, err)
	}

	subs := map[string]mqtt.MessageHandler{
		b.devicesTopic(): func(_ mqtt.Client, msg mqtt.Message) {
			if err := b.handleDevices(msg.Payload()); err != nil {
				log.Printf("mqttbridge: %v", err)
			}
		},
		b.prefix + "/pose/+": func(_ mqtt.Client, msg mqtt.Message) {
			if err := b.handlePose(msg.Topic(), msg.Payload()); err != nil {
				log.Printf("mqttbridge: %v", err)
			}
		},
	}
	for topic, handler := range subs {
		tok := b.client.Subscribe(topic, 0, handler)
		if !tok.WaitTimeout(mc.ConnectTimeout) {
			b.client.Disconnect(250)
			return nil, fmt.Errorf("mqtt subscribe %s: timed out", topic)
		}
		if err := tok.Error(); err != nil {
			b.client.Disconnect(250)
			return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, err)
		}
	}

	select {
	case <-b.listReady:
	case <-time.After(mc.ConnectTimeout):
		log.Printf("mqttbridge: no device list on %s after %v", b.devicesTopic(), mc.ConnectTimeout)
	case <-ctx.Done():
		b.client.Disconnect(250)
		return nil, ctx.Err()
	}
	return b, nil
}

func (b *Bridge) devicesTopic() string { return b.prefix + "/devices" }

func (b *Bridge) handleDevices(payload []byte) error {
	var list []DeviceMessage
	if err := json.Unmarshal(payload, &list); err != nil {
		return fmt.Errorf("device list: %w", err)
	}
	devices := make(map[device.ID]DeviceMessage, len(list))
	for _, d := range list {
		devices[device.ID(d.ID)] = d
	}

	b.mu.Lock()
	b.devices = devices
	b.mu.Unlock()

	b.listOnce.Do(func() { close(b.listReady) })
	return nil
}

func (b *Bridge) handlePose(topic string, payload []byte) error {
	idx := strings.LastIndexByte(topic, '/')
	n, err := strconv.Atoi(topic[idx+1:])
	if err != nil {
		return fmt.Errorf("pose topic %q: bad device id", topic)
	}

	var msg PoseMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("pose %d: %w", n, err)
	}

	var t mgl64.Mat3x4
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			t.Set(row, col, msg.M[row][col])
		}
	}

	b.mu.Lock()
	b.poses[device.ID(n)] = entry{pose: device.Pose{Transform: t}, valid: msg.Valid, received: b.now()}
	b.mu.Unlock()
	return nil
}

func (b *Bridge) ListDevices() map[device.ID]device.Descriptor {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[device.ID]device.Descriptor)
	for id, d := range b.devices {
		class, _ := device.ParseClass(d.Class)
		if class.Recordable() {
			out[id] = device.Descriptor{ID: id, Class: class, Name: d.Name}
		}
	}
	return out
}

func (b *Bridge) IsConnected(id device.ID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.devices[id]
	return ok && d.Connected
}

func (b *Bridge) ClassOf(id device.ID) device.Class {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.devices[id]
	if !ok {
		return device.ClassInvalid
	}
	class, _ := device.ParseClass(d.Class)
	return class
}

// QueryPose returns the cached pose if it is valid and fresher than the
// staleness limit.
func (b *Bridge) QueryPose(id device.ID) (device.Pose, bool) {
	b.mu.RLock()
	e, ok := b.poses[id]
	b.mu.RUnlock()

	if !ok || !e.valid {
		return device.Pose{}, false
	}
	if b.staleness > 0 && b.now().Sub(e.received) > b.staleness {
		return device.Pose{}, false
	}
	return e.pose, true
}

func (b *Bridge) Close() error {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250)
	}
	return nil
}
