package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glow2mqtt/internal/config"
	"glow2mqtt/internal/core/domain"
	"glow2mqtt/internal/core/port"
	"glow2mqtt/internal/util/actorutil"
	"glow2mqtt/pkg/glowmarkt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/logger"
	"go.uber.org/zap"
)

const (
	glowCallTimeout = 30 * time.Second
)

// GlowSessionActor owns one account's API client and token. Every request
// for the account flows through its mailbox, so a token refresh can never
// race another: while a call (and possibly its repair) is in flight, later
// requests are stashed.
type GlowSessionActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	account  config.AccountConfig
	client   port.GlowClient
	store    port.CredentialStore
	logger   *zap.Logger
}

// pendingCall is one API operation in flight, with enough context to retry
// it once after a token refresh.
type pendingCall struct {
	run     func() (any, error)
	fail    func(error) any
	replyTo *actor.PID
	retried bool
}

type callResult struct {
	message any
	err     error
}

type reauthResult struct {
	err error
}

func NewGlowSessionActor(account config.AccountConfig, client port.GlowClient, store port.CredentialStore, logger *zap.Logger) *GlowSessionActor {
	act := &GlowSessionActor{
		account:  account,
		client:   client,
		store:    store,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_SESSION_PREFIX+account.AccountName(), logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *GlowSessionActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *GlowSessionActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("session@starting started")

		// adopt the previously stored token. Absent or stale tokens are not
		// an error: the first failing call triggers the repair path.
		cred, err := state.store.Load(state.account.AccountName())
		switch {
		case err == nil && cred.Token != "":
			state.client.SetToken(cred.Token)
		case errors.Is(err, port.ErrCredentialNotFound):
			state.logger.Debug("session@starting no stored credential")
		case err != nil:
			state.logger.Warn("session@starting could not load credential", zap.Error(err))
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("session@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *GlowSessionActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("session@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_SESSION_PREFIX + state.account.AccountName(),
			Healthy: true,
			State:   "idle",
		})
	case domain.GetResourcesRequest:
		state.logger.Debug("session@default: GetResourcesRequest")
		account := state.account.AccountName()
		call := &pendingCall{
			replyTo: actorutil.ForRequest(msg).ReplyTo(ctx),
			run: func() (any, error) {
				resources, err := state.client.RetrieveResources(context.Background())
				if err != nil {
					return nil, err
				}
				return domain.GetResourcesResponse{
					Account:   account,
					Resources: resources,
				}, nil
			},
			fail: func(err error) any {
				return domain.GetResourcesResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					Account: account,
				}
			},
		}
		state.startCall(ctx, call)
	case domain.GetReadingRequest:
		state.logger.Debug("session@default: GetReadingRequest", zap.String("resource", msg.ResourceID))
		resourceID := msg.ResourceID
		call := &pendingCall{
			replyTo: actorutil.ForRequest(msg).ReplyTo(ctx),
			run: func() (any, error) {
				reading, err := state.client.CurrentUsage(context.Background(), resourceID)
				if err != nil {
					return nil, err
				}
				return domain.GetReadingResponse{
					ResourceID: resourceID,
					Reading:    reading,
				}, nil
			},
			fail: func(err error) any {
				return domain.GetReadingResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					ResourceID: resourceID,
				}
			},
		}
		state.startCall(ctx, call)
	default:
		state.logger.Debug("session@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *GlowSessionActor) startCall(ctx actor.Context, call *pendingCall) {
	state.runCall(ctx, call)
	state.behavior.BecomeStacked(state.waitingReceive(call))
}

func (state *GlowSessionActor) runCall(ctx actor.Context, call *pendingCall) {
	actorutil.NewBackgroundTask(ctx, func() (*callResult, error) {
		message, err := call.run()
		return &callResult{message: message, err: err}, nil
	}).Recover(func(err error) callResult {
		return callResult{err: err}
	}).WithTimeout(glowCallTimeout).PipeTo(ctx.Self())
}

func (state *GlowSessionActor) waitingReceive(call *pendingCall) actor.ReceiveFunc {
	return func(ctx actor.Context) {
		switch msg := ctx.Message().(type) {
		case callResult:
			if msg.err != nil && errors.Is(msg.err, glowmarkt.ErrInvalidAuth) && !call.retried {
				// one-shot repair: reauthenticate, persist, retry once
				call.retried = true
				state.logger.Warn("session@waiting invalid auth, reauthenticating")
				state.startReauth(ctx)
				return
			}
			if msg.err != nil {
				state.logger.Error("session@waiting call failed", zap.Error(msg.err))
				ctx.Send(call.replyTo, call.fail(msg.err))
			} else {
				ctx.Send(call.replyTo, msg.message)
			}
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		case reauthResult:
			if msg.err != nil {
				state.logger.Error("session@waiting reauthentication failed", zap.Error(msg.err))
				ctx.Send(call.replyTo, call.fail(msg.err))
				state.behavior.UnbecomeStacked()
				state.stash.UnstashAll(ctx)
				return
			}
			state.logger.Info("session@waiting reauthenticated, retrying call")
			state.runCall(ctx, call)
		default:
			state.logger.Debug("session@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
			state.stash.Stash(ctx, msg)
		}
	}
}

func (state *GlowSessionActor) startReauth(ctx actor.Context) {
	actorutil.NewBackgroundTask(ctx, func() (*reauthResult, error) {
		auth, err := state.client.Authenticate(context.Background(), state.account.Username, state.account.Password)
		if err != nil {
			return &reauthResult{err: err}, nil
		}
		state.client.SetToken(auth.Token)
		err = state.store.Save(state.account.AccountName(), port.Credential{
			Username: state.account.Username,
			Token:    auth.Token,
			Issued:   time.Now(),
		})
		if err != nil {
			// keep going with the in-memory token
			logger.Error(err)
		}
		return &reauthResult{}, nil
	}).Recover(func(err error) reauthResult {
		return reauthResult{err: err}
	}).WithTimeout(glowCallTimeout).PipeTo(ctx.Self())
}
