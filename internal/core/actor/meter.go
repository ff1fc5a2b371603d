package actor

import (
	"errors"
	"fmt"
	"time"

	"glow2mqtt/internal/config"
	"glow2mqtt/internal/core/domain"
	"glow2mqtt/internal/core/events"
	"glow2mqtt/internal/core/service"
	"glow2mqtt/internal/util/actorutil"
	"glow2mqtt/pkg/glowmarkt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const meterReadingTimeout = 2 * time.Minute

// MeterActor polls one consumption resource through its account's session
// actor and publishes reading and availability events. A meter starts
// optimistically available and only flips to unavailable when a poll fails
// with an auth error the session could not repair.
type MeterActor struct {
	behavior  actor.Behavior
	stash     *actorutil.Stash
	scheduler *scheduler.TimerScheduler

	sessionActor *actor.PID
	config       *config.Config
	eventStream  *eventstream.EventStream
	resource     glowmarkt.Resource
	sensorId     string
	resetClock   *service.ResetClock
	available    bool

	logger *zap.Logger
}

type meterPollTick struct {
}

func NewMeterActor(config *config.Config, resource glowmarkt.Resource, sessionActor *actor.PID,
	eventStream *eventstream.EventStream, resetClock *service.ResetClock, logger *zap.Logger) *MeterActor {
	sensorId := events.TopicId(resource.ID)
	act := &MeterActor{
		config:       config,
		resource:     resource,
		sensorId:     sensorId,
		sessionActor: sessionActor,
		eventStream:  eventStream,
		resetClock:   resetClock,
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_METER_PREFIX+sensorId, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MeterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MeterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("meter@starting started", zap.String("classifier", state.resource.Classifier))

		state.scheduler = scheduler.NewTimerScheduler(ctx)

		// meters are born available, the first failed poll flips them
		state.available = true
		state.eventStream.Publish(events.AvailabilityUpdateEvent(state.sensorId, true))

		// first poll right away, the scheduler takes over afterwards
		ctx.Send(ctx.Self(), meterPollTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("meter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MeterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("meter@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_METER_PREFIX + state.sensorId,
			Healthy: true,
			State:   "idle",
		})
	case meterPollTick:
		state.logger.Debug("meter@default tick")
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.sessionActor, domain.GetReadingRequest{
			ResourceID: state.resource.ID,
		}, meterReadingTimeout), func(err error) any {
			return domain.GetReadingResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
				ResourceID: state.resource.ID,
			}
		})
		// schedule next tick
		state.scheduler.RequestOnce(time.Duration(state.config.MonitorConfig.PollIntervalMillis)*time.Millisecond, ctx.Self(), meterPollTick{})
		state.behavior.BecomeStacked(state.WaitingReadingReceive)
	default:
		state.logger.Debug("meter@default: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MeterActor) WaitingReadingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetReadingResponse:
		if msg.HasResponseError() {
			state.handleReadingError(msg.GetResponseError())
		} else {
			state.handleReading(msg.Reading)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("meter@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MeterActor) handleReading(reading *glowmarkt.Reading) {
	state.logger.Debug("meter@waiting GetReadingResponse")
	evs := events.ReadingToUpdateEvents(state.sensorId, reading, state.resetClock.LastReset())
	for _, ev := range evs {
		state.eventStream.Publish(ev)
	}
	if !state.available {
		state.available = true
		state.eventStream.Publish(events.AvailabilityUpdateEvent(state.sensorId, true))
	}
}

func (state *MeterActor) handleReadingError(err error) {
	if errors.Is(err, glowmarkt.ErrInvalidAuth) {
		// the session already tried to repair the token, mark the meter
		// unavailable until a poll succeeds again
		state.logger.Warn("meter@waiting reading failed with auth error", zap.Error(err))
		if state.available {
			state.available = false
			state.eventStream.Publish(events.AvailabilityUpdateEvent(state.sensorId, false))
		}
		return
	}
	// transient errors keep the last state visible
	state.logger.Error("meter@waiting reading failed", zap.Error(err))
}
