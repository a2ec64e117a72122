/*
nimbus - Air quality badge controller
Copyright (C) 2024, lashy0

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/


package telemetry

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// MQTTPublisher publishes to a broker. Readings go to <topic>/readings and
// state changes to <topic>/state.
type MQTTPublisher struct {
	client paho.Client
	topic  string
}

func NewMQTTPublisher(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return &MQTTPublisher{client: client, topic: topic}, nil
}

func (p *MQTTPublisher) publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *MQTTPublisher) PublishReading(r Reading) error {
	payload, err := FormatReading(r)
	if err != nil {
		return fmt.Errorf("format reading: %w", err)
	}
	return p.publish(p.topic+"/readings", 0, payload)
}

func (p *MQTTPublisher) PublishState(state string, at time.Time) error {
	payload, err := FormatState(state, at)
	if err != nil {
		return fmt.Errorf("format state: %w", err)
	}
	return p.publish(p.topic+"/state", 1, payload)
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
