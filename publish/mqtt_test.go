package publish

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherDefaults(t *testing.T) {
	p := NewPublisher(nil, Config{Broker: "tcp://127.0.0.1:1883"})

	assert.Equal(t, "plc", p.config.RootTopic)
	assert.Equal(t, "default", p.config.PlcName)
	assert.NotZero(t, p.config.CycleTime)
}

func TestTopicFor(t *testing.T) {
	p := NewPublisher(nil, Config{
		Broker:    "tcp://127.0.0.1:1883",
		RootTopic: "factory",
		PlcName:   "line1",
	})

	assert.Equal(t, "factory/line1/GVL/Temperature", p.topicFor("GVL.Temperature"))
	assert.Equal(t, "factory/line1/MAIN/Machine/Speed", p.topicFor("MAIN.Machine.Speed"))
}

func TestAddVariableRequiresStart(t *testing.T) {
	p := NewPublisher(nil, Config{Broker: "tcp://127.0.0.1:1883"})
	err := p.AddVariable(t.Context(), "GVL.X")
	assert.Error(t, err)
}

func TestTagMessageJSON(t *testing.T) {
	msg := TagMessage{
		Topic:     "factory/line1/GVL/Temperature",
		Plc:       "line1",
		Variable:  "GVL.Temperature",
		Value:     21.5,
		Timestamp: "2024-06-01T12:00:00Z",
	}
	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "line1", decoded["plc"])
	assert.Equal(t, 21.5, decoded["value"])
}
