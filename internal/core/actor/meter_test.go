package actor

import (
	"sync"
	"testing"
	"time"

	"glow2mqtt/internal/core/domain"
	"glow2mqtt/internal/core/service"
	"glow2mqtt/internal/util"
	"glow2mqtt/internal/util/actorutil"
	"glow2mqtt/pkg/glowmarkt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	testifyassert "github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const testResourceID = "6ff3cbc6-0b2d-4b4b-a16a-a2a0beed4e1b"

// scriptedSessionActor serves one canned response per poll, repeating the
// last one once the script runs out.
type scriptedSessionActor struct {
	responses []domain.GetReadingResponse
	calls     int
}

func (s *scriptedSessionActor) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case domain.GetReadingRequest:
		idx := s.calls
		if idx >= len(s.responses) {
			idx = len(s.responses) - 1
		}
		s.calls++
		ctx.Respond(s.responses[idx])
	}
}

type eventCollector struct {
	mu     sync.Mutex
	events []any
}

func (c *eventCollector) add(event any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *eventCollector) snapshot() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any{}, c.events...)
}

func successReadingResponse(value float64) domain.GetReadingResponse {
	return domain.GetReadingResponse{
		ResourceID: testResourceID,
		Reading: &glowmarkt.Reading{
			Data:  [][2]float64{{1719792000, value}},
			Units: "kWh",
		},
	}
}

func authErrorReadingResponse() domain.GetReadingResponse {
	return domain.GetReadingResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{
			ResponseError: glowmarkt.ErrInvalidAuth,
		},
		ResourceID: testResourceID,
	}
}

func spawnMeterActor(t *testing.T, session *scriptedSessionActor, collector *eventCollector) (*actor.ActorSystem, *actor.RootContext, *actor.PID) {
	cfg := util.LoadTestConfig()
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	es := &eventstream.EventStream{}
	es.Subscribe(func(event any) {
		collector.add(event)
	})

	sessionPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor { return session }))

	resetClock, err := service.NewResetClock(cfg.MonitorConfig.Timezone)
	if err != nil {
		t.Fatal(err)
	}

	resource := glowmarkt.Resource{
		ID:         testResourceID,
		Label:      "electricity consumption",
		Classifier: glowmarkt.ClassifierElectricityConsumption,
		SourceType: glowmarkt.SourceElectricity,
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMeterActor(&cfg, resource, sessionPID, es, resetClock, logger)
	})
	pid := context.Spawn(props)

	return as, context, pid
}

func TestMeterActorPublishesReadings(t *testing.T) {

	assert := assert.New(t)

	session := &scriptedSessionActor{
		responses: []domain.GetReadingResponse{successReadingResponse(0.42)},
	}
	collector := &eventCollector{}

	as, context, pid := spawnMeterActor(t, session, collector)

	time.Sleep(500 * time.Millisecond)

	events := collector.snapshot()

	var initialAvailability *domain.SensorAvailabilityUpdateEvent
	var reading *domain.MeterReadingUpdateEvent
	for _, event := range events {
		switch ev := event.(type) {
		case domain.SensorAvailabilityUpdateEvent:
			if initialAvailability == nil {
				initialAvailability = &ev
			}
		case domain.MeterReadingUpdateEvent:
			if reading == nil {
				reading = &ev
			}
		}
	}

	if assert.NotNil(initialAvailability, "initial availability published") {
		assert.True(initialAvailability.Available, "meter starts available")
	}
	if assert.NotNil(reading, "reading published") {
		assert.Equal("6ff3cbc6_0b2d_4b4b_a16a_a2a0beed4e1b", reading.Id, "sensor id")
		assert.Equal(0.42, reading.Value, "reading value")
		assert.Equal("kWh", reading.Unit, "reading unit")
		assert.Equal(uint(3), reading.Decimals, "decimals")
		assert.Equal(0, reading.LastReset.Hour(), "last reset at local midnight")
		assert.Equal(0, reading.LastReset.Minute(), "last reset at local midnight")
	}

	context.Stop(pid)

	as.Shutdown()
}

func TestMeterActorFlipsAvailabilityOnAuthError(t *testing.T) {

	assert := assert.New(t)

	// one good poll, one unrepaired auth failure, then good again
	session := &scriptedSessionActor{
		responses: []domain.GetReadingResponse{
			successReadingResponse(0.42),
			authErrorReadingResponse(),
			successReadingResponse(0.43),
		},
	}
	collector := &eventCollector{}

	as, context, pid := spawnMeterActor(t, session, collector)

	time.Sleep(1 * time.Second)

	events := collector.snapshot()

	var availability []bool
	for _, event := range events {
		if ev, ok := event.(domain.SensorAvailabilityUpdateEvent); ok {
			availability = append(availability, ev.Available)
		}
	}

	// online at start, offline on the auth error, online again on recovery
	assert.Equal([]bool{true, false, true}, availability, "availability transitions")

	context.Stop(pid)

	as.Shutdown()
}

func TestMeterActorKeepsAvailabilityOnTransientError(t *testing.T) {

	assert := assert.New(t)

	session := &scriptedSessionActor{
		responses: []domain.GetReadingResponse{
			{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: testifyassert.AnError,
				},
				ResourceID: testResourceID,
			},
			successReadingResponse(0.42),
		},
	}
	collector := &eventCollector{}

	as, context, pid := spawnMeterActor(t, session, collector)

	time.Sleep(500 * time.Millisecond)

	events := collector.snapshot()

	var availability []bool
	for _, event := range events {
		if ev, ok := event.(domain.SensorAvailabilityUpdateEvent); ok {
			availability = append(availability, ev.Available)
		}
	}

	// a non-auth failure never flips the meter offline
	assert.Equal([]bool{true}, availability, "availability transitions")

	context.Stop(pid)

	as.Shutdown()
}
