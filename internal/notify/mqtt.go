//go:build !no_mqtt

package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTConfig holds MQTT publisher configuration.
type MQTTConfig struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// MQTTPublisher forwards bus events to an MQTT broker as JSON.
type MQTTPublisher struct {
	client pahomqtt.Client
	prefix string
	logger *slog.Logger
	unsub  func()

	// In-flight publishes, drained by Stop.
	wg sync.WaitGroup
}

// NewMQTTPublisher connects to the broker.
func NewMQTTPublisher(cfg MQTTConfig, logger *slog.Logger) (*MQTTPublisher, error) {
	p := &MQTTPublisher{
		prefix: cfg.TopicPrefix,
		logger: logger.With("component", "mqtt"),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("modelr-"+uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetWill(cfg.TopicPrefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			p.logger.Debug("MQTT connected")
			p.publishBridgeState("online")
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			p.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	p.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return p, nil
}

// Attach subscribes the publisher to every event on bus.
func (p *MQTTPublisher) Attach(bus *Bus) {
	p.unsub = bus.OnAll(p.handleEvent)
	p.logger.Debug("MQTT publisher attached", "prefix", p.prefix)
}

// Stop publishes offline state, unsubscribes, waits for pending publishes
// and disconnects.
func (p *MQTTPublisher) Stop() {
	if p.unsub != nil {
		p.unsub()
	}
	p.publishBridgeState("offline")
	p.wg.Wait()
	p.client.Disconnect(1000)
	p.logger.Debug("MQTT publisher stopped")
}

func (p *MQTTPublisher) handleEvent(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("encode event", "type", event.Type, "err", err)
		return
	}
	p.publish(Topic(p.prefix, event), payload, false)
}

func (p *MQTTPublisher) publishBridgeState(state string) {
	p.publish(p.prefix+"/bridge/state", []byte(state), true)
}

func (p *MQTTPublisher) publish(topic string, payload []byte, retained bool) {
	token := p.client.Publish(topic, 1, retained, payload)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if !token.WaitTimeout(5 * time.Second) {
			p.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			p.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

// Topic returns the topic an event is published on:
// <prefix>/scenario/<name>/<type>.
func Topic(prefix string, event Event) string {
	name := topicSegment(event.Scenario)
	if name == "" {
		name = "_"
	}
	return prefix + "/scenario/" + name + "/" + event.Type
}

// topicSegment replaces characters with meaning in MQTT topic filters.
func topicSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, s)
}
