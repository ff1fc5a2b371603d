package actor

import (
	"testing"
	"time"

	"glow2mqtt/internal/core/domain"
	"glow2mqtt/internal/mqtt"
	"glow2mqtt/internal/util"
	"glow2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testMQTTActorForMapping(t *testing.T) *MQTTActor {
	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())
	return &MQTTActor{
		config: &cfg,
		logger: logger,
		client: mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil, nil),
	}
}

func TestMeterReadingEventToMQTTMessage(t *testing.T) {

	assert := assert.New(t)

	state := testMQTTActorForMapping(t)

	lastReset := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	msg := state.event2MQTTMessage(domain.MeterReadingUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "res_1",
		},
		Value:     0.42,
		Decimals:  3,
		Unit:      "kWh",
		LastReset: lastReset,
	})

	assert.NotNil(msg)
	assert.Equal("glow2mqtt/sensor/res_1/state", msg.topic, "state topic")
	assert.JSONEq(`{"value":0.420,"unit":"kWh","last_reset":"2024-07-01T00:00:00Z"}`, msg.message, "state payload")
	assert.False(msg.retain, "reading not retained")
}

func TestMeterReadingEventWithoutUnit(t *testing.T) {

	assert := assert.New(t)

	state := testMQTTActorForMapping(t)

	msg := state.event2MQTTMessage(domain.MeterReadingUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "res_1",
		},
		Value:     1.07,
		Decimals:  3,
		LastReset: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	})

	assert.NotNil(msg)
	assert.JSONEq(`{"value":1.070,"last_reset":"2024-07-01T00:00:00Z"}`, msg.message, "unit omitted")
}

func TestAvailabilityEventToMQTTMessage(t *testing.T) {

	assert := assert.New(t)

	state := testMQTTActorForMapping(t)

	msg := state.event2MQTTMessage(domain.SensorAvailabilityUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "res_1",
		},
		Available: true,
	})

	assert.NotNil(msg)
	assert.Equal("glow2mqtt/sensor/res_1/availability", msg.topic, "availability topic")
	assert.Equal("online", msg.message, "availability payload")
	assert.True(msg.retain, "availability retained")

	msg = state.event2MQTTMessage(domain.SensorAvailabilityUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "res_1",
		},
		Available: false,
	})

	assert.NotNil(msg)
	assert.Equal("offline", msg.message, "availability payload")
}

func TestBridgeStateEventToMQTTMessage(t *testing.T) {

	assert := assert.New(t)

	state := testMQTTActorForMapping(t)

	msg := state.event2MQTTMessage(domain.BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "bridge_state",
		},
		Value: true,
	})

	assert.NotNil(msg)
	assert.Equal("glow2mqtt/bridge/state", msg.topic, "bridge state topic")
	assert.Equal("online", msg.message, "bridge state payload")
}

func TestUnknownEventIsIgnored(t *testing.T) {

	assert := assert.New(t)

	state := testMQTTActorForMapping(t)

	assert.Nil(state.event2MQTTMessage("not an event"), "unknown event")
}

func TestDummyMQTTActorHealth(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, nil, logger) })
	pid := context.Spawn(props)

	time.Sleep(200 * time.Millisecond)

	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(ok)
	assert.True(resp.Healthy, "healthy")

	context.Stop(pid)

	as.Shutdown()
}
