package actor

import (
	"errors"
	"testing"
	"time"

	"glow2mqtt/internal/adapter/credstore"
	"glow2mqtt/internal/config"
	"glow2mqtt/internal/core/domain"
	"glow2mqtt/internal/core/port"
	"glow2mqtt/internal/util/actorutil"
	"glow2mqtt/pkg/glowmarkt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testAccount() config.AccountConfig {
	return config.AccountConfig{
		Name:     "home",
		Username: "me@example.com",
		Password: "hunter2",
	}
}

func spawnSessionActor(t *testing.T, client port.GlowClient, store port.CredentialStore) (*actor.ActorSystem, *actor.RootContext, *actor.PID) {
	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewGlowSessionActor(testAccount(), client, store, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(200 * time.Millisecond)

	return as, context, pid
}

func TestGetResourcesSessionActor(t *testing.T) {

	assert := assert.New(t)

	client := glowmarkt.NewTestClient()

	store, err := credstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Error(err)
		return
	}

	as, context, pid := spawnSessionActor(t, client, store)

	result, err := context.RequestFuture(pid, domain.GetResourcesRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetResourcesResponse)

	assert.False(resp.HasResponseError(), "response error")
	assert.Equal("home", resp.Account, "account")
	assert.Len(resp.Resources, 3, "resource count")
	assert.Equal(0, client.AuthCalls, "auth calls")

	context.Stop(pid)

	as.Shutdown()
}

func TestGetReadingSessionActor(t *testing.T) {

	assert := assert.New(t)

	client := glowmarkt.NewTestClient()

	store, err := credstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Error(err)
		return
	}

	as, context, pid := spawnSessionActor(t, client, store)

	msg := domain.GetReadingRequest{ResourceID: "6ff3cbc6-0b2d-4b4b-a16a-a2a0beed4e1b"}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetReadingResponse)

	assert.False(resp.HasResponseError(), "response error")
	assert.Equal("6ff3cbc6-0b2d-4b4b-a16a-a2a0beed4e1b", resp.ResourceID, "resource id")
	value, ok := resp.Reading.Value()
	assert.True(ok, "reading has value")
	assert.Equal(0.42, value, "reading value")
	assert.Equal("kWh", resp.Reading.Units, "reading units")

	context.Stop(pid)

	as.Shutdown()
}

func TestStaleTokenRepairSessionActor(t *testing.T) {

	assert := assert.New(t)

	client := glowmarkt.NewTestClient()
	client.AcceptToken = "fresh-token"
	client.AuthToken = "fresh-token"

	store, err := credstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Error(err)
		return
	}
	// stored token from a previous run, no longer accepted by the API
	err = store.Save("home", port.Credential{Username: "me@example.com", Token: "stale-token"})
	if err != nil {
		t.Error(err)
		return
	}

	as, context, pid := spawnSessionActor(t, client, store)

	result, err := context.RequestFuture(pid, domain.GetResourcesRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetResourcesResponse)

	assert.False(resp.HasResponseError(), "response error")
	assert.Len(resp.Resources, 3, "resource count")
	assert.Equal(1, client.AuthCalls, "auth calls")

	cred, err := store.Load("home")
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal("fresh-token", cred.Token, "persisted token")

	context.Stop(pid)

	as.Shutdown()
}

func TestRepairRetriesOnceSessionActor(t *testing.T) {

	assert := assert.New(t)

	// reauthentication hands back a token the API still rejects, so the
	// single retry fails and the error surfaces on the response
	client := glowmarkt.NewTestClient()
	client.Token = "stale-token"
	client.AcceptToken = "fresh-token"
	client.AuthToken = "also-stale-token"

	store, err := credstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Error(err)
		return
	}

	as, context, pid := spawnSessionActor(t, client, store)

	result, err := context.RequestFuture(pid, domain.GetResourcesRequest{}, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetResourcesResponse)

	assert.True(resp.HasResponseError(), "response error")
	assert.True(errors.Is(resp.GetResponseError(), glowmarkt.ErrInvalidAuth), "invalid auth error")
	assert.Equal(1, client.AuthCalls, "auth calls")

	context.Stop(pid)

	as.Shutdown()
}

func TestReauthFailureSessionActor(t *testing.T) {

	assert := assert.New(t)

	client := glowmarkt.NewTestClient()
	client.Token = "stale-token"
	client.AcceptToken = "fresh-token"
	client.AuthErr = glowmarkt.ErrInvalidAuth

	store, err := credstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Error(err)
		return
	}

	as, context, pid := spawnSessionActor(t, client, store)

	msg := domain.GetReadingRequest{ResourceID: "6ff3cbc6-0b2d-4b4b-a16a-a2a0beed4e1b"}
	result, err := context.RequestFuture(pid, msg, 15*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	resp := result.(domain.GetReadingResponse)

	assert.True(resp.HasResponseError(), "response error")
	assert.True(errors.Is(resp.GetResponseError(), glowmarkt.ErrInvalidAuth), "invalid auth error")
	assert.Equal(1, client.AuthCalls, "auth calls")

	context.Stop(pid)

	as.Shutdown()
}
