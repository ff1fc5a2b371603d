package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "glow2mqtt/internal/adapter/actor"
	"glow2mqtt/internal/config"
	"glow2mqtt/internal/core/domain"
	"glow2mqtt/internal/core/events"
	"glow2mqtt/internal/core/service"
	"glow2mqtt/internal/util/actorutil"
	"glow2mqtt/pkg/glowmarkt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type SessionActorProvider func(config.AccountConfig) *adactor.GlowSessionActor

const bootstrapTimeout = 2 * time.Minute

// MasterOfMetersActor boots the actor tree: one MQTT child, one session
// child per account, then one meter child per recognized consumption
// resource. Accounts whose resource listing fails are logged and skipped, a
// single bad account does not take the bridge down.
type MasterOfMetersActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *actorutil.Stash

	currentHealthCheck   healthCheckResult
	eventStream          *eventstream.EventStream
	mqttActor            *actor.PID
	sessionActors        map[string]*actor.PID
	meterActors          []*actor.PID
	discoverySensors     []domain.GenericSensor
	pendingAccounts      int
	resetClock           *service.ResetClock
	sessionActorProvider SessionActorProvider
	mqttActorProvider    MQTTActorProvider
	logger               *zap.Logger
}

type healthCheckResult struct {
	healthyReceived int
	checksReceived  int
	checksExpected  int
	respondTo       *actor.PID
}

func NewMasterOfMetersActor(config config.Config, sessionActorProvider SessionActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfMetersActor {
	act := &MasterOfMetersActor{
		config:               config,
		behavior:             actor.NewBehavior(),
		stash:                &actorutil.Stash{},
		logger:               actorutil.ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:          &eventstream.EventStream{},
		sessionActors:        map[string]*actor.PID{},
		sessionActorProvider: sessionActorProvider,
		mqttActorProvider:    mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfMetersActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfMetersActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		resetClock, err := service.NewResetClock(state.config.MonitorConfig.Timezone)
		if err != nil {
			panic(err)
		}
		state.resetClock = resetClock

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start one session child per account and ask each for its resources
		state.pendingAccounts = len(state.config.Glowmarkt.Accounts)
		for _, account := range state.config.Glowmarkt.Accounts {
			sessionActorPID, err := state.startSessionActor(ctx, account)
			if err != nil {
				panic(err)
			}
			state.sessionActors[account.AccountName()] = sessionActorPID

			accountName := account.AccountName()
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(sessionActorPID, domain.GetResourcesRequest{}, bootstrapTimeout), func(err error) any {
				return domain.GetResourcesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					Account: accountName,
				}
			})
		}

		if state.pendingAccounts == 0 {
			state.finishBootstrap(ctx)
		} else {
			state.behavior.Become(state.BootstrapReceive)
		}
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// BootstrapReceive collects one resource listing per account and spawns the
// meter children.
func (state *MasterOfMetersActor) BootstrapReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetResourcesResponse:
		state.pendingAccounts--
		if msg.HasResponseError() {
			state.logger.Error("master@bootstrap account setup failed",
				zap.String("account", msg.Account), zap.Error(msg.GetResponseError()))
		} else {
			state.setupAccountMeters(ctx, msg.Account, msg.Resources)
		}
		if state.pendingAccounts == 0 {
			state.finishBootstrap(ctx)
		}
	default:
		state.logger.Debug("master@bootstrap stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfMetersActor) setupAccountMeters(ctx actor.Context, account string, resources []glowmarkt.Resource) {
	sessionActorPID := state.sessionActors[account]
	for _, resource := range resources {
		if !resource.HasConsumptionClassifier() {
			state.logger.Debug("master@bootstrap skipping resource",
				zap.String("classifier", resource.Classifier), zap.String("resource", resource.ID))
			continue
		}
		meterActorPID, err := state.startMeterActor(ctx, resource, sessionActorPID)
		if err != nil {
			panic(err)
		}
		state.meterActors = append(state.meterActors, meterActorPID)
		state.discoverySensors = append(state.discoverySensors, events.ConsumptionSensor(resource))
	}
}

func (state *MasterOfMetersActor) finishBootstrap(ctx actor.Context) {
	state.logger.Info("master@bootstrap done", zap.Int("meters", len(state.meterActors)))
	if len(state.meterActors) == 0 {
		state.logger.Warn("master@bootstrap no meters found, nothing will be published")
	}

	// start HA Discovery
	if state.config.MQTT.HADiscoveryEnable {
		_, err := state.startHADiscoveryActor(ctx)
		if err != nil {
			panic(err)
		}
	}

	state.behavior.Become(state.DefaultReceive)
	state.stash.UnstashAll(ctx)
}

func (state *MasterOfMetersActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(1 + len(state.sessionActors))
		state.currentHealthCheck.respondTo = ctx.Sender()
		// MQTT Actor Request
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		// Session Actor Requests
		for account, sessionActorPID := range state.sessionActors {
			accountName := account
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(sessionActorPID, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      domain.ACTOR_ID_SESSION_PREFIX + accountName,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case *actor.Terminated:
		// if the MQTT actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MQTT) {
			state.logger.Error("master@default mqtt error")
			panic(errors.New("mqtt terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfMetersActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			state.currentHealthCheck.healthyReceived++
		}
		if state.currentHealthCheck.allReceived() {

			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfMetersActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfMetersActor) startSessionActor(ctx actor.Context, account config.AccountConfig) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	sessionProps := actor.PropsFromProducer(func() actor.Actor {
		return state.sessionActorProvider(account)
	}, actor.WithSupervisor(supervisor))
	sessionActorPID, err := ctx.SpawnNamed(sessionProps, domain.ACTOR_ID_SESSION_PREFIX+account.AccountName())
	if err != nil {
		return nil, err
	}

	return sessionActorPID, nil
}

func (state *MasterOfMetersActor) startMeterActor(ctx actor.Context, resource glowmarkt.Resource, sessionActor *actor.PID) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	meterProps := actor.PropsFromProducer(func() actor.Actor {
		return NewMeterActor(&state.config, resource, sessionActor, state.eventStream, state.resetClock, state.logger)
	}, actor.WithSupervisor(supervisor))
	meterActorPID, err := ctx.SpawnNamed(meterProps, domain.ACTOR_ID_METER_PREFIX+events.TopicId(resource.ID))
	if err != nil {
		return nil, err
	}

	return meterActorPID, nil
}

func (state *MasterOfMetersActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	// bridge sensors plus one consumption sensor per meter, all linked to
	// the bridge device
	bridgeDevice := events.BridgeDevice(state.config.MQTT.BaseTopic)
	sensors := events.BridgeSensors(bridgeDevice)
	for _, sensor := range state.discoverySensors {
		sensor.Device.ViaDevice = bridgeDevice.Id
		sensors = append(sensors, sensor)
	}

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, sensors, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *healthCheckResult) reset(expected int) {
	state.healthyReceived = 0
	state.checksReceived = 0
	state.checksExpected = expected
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == state.checksExpected
}

func (state *healthCheckResult) allHealthy() bool {
	return state.healthyReceived == state.checksExpected
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
