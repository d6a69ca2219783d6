//go:build !no_mqtt

package main

import (
	"log/slog"

	"modelr/internal/notify"
)

type mqttStopper struct {
	pub *notify.MQTTPublisher
}

func (m *mqttStopper) Stop() {
	if m.pub != nil {
		m.pub.Stop()
	}
}

func initMQTT(bus *notify.Bus, cfg *Config, logger *slog.Logger) *mqttStopper {
	if !cfg.MQTT.Enabled {
		return &mqttStopper{}
	}
	pub, err := notify.NewMQTTPublisher(notify.MQTTConfig{
		Broker:      cfg.MQTT.Broker,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}, logger)
	if err != nil {
		logger.Error("mqtt publisher", "err", err)
		return &mqttStopper{}
	}
	pub.Attach(bus)
	return &mqttStopper{pub: pub}
}
