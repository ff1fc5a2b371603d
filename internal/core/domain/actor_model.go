package domain

import "glow2mqtt/pkg/glowmarkt"

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"

	ACTOR_ID_SESSION_PREFIX = "session_"
	ACTOR_ID_METER_PREFIX   = "meter_"
)

// GetResourcesRequest asks a session actor to enumerate the account's meter
// resources. The session handles token repair transparently, so an auth error
// on the response means re-authentication already failed too.
type GetResourcesRequest struct {
	ActorRequestMixIn
}

type GetResourcesResponse struct {
	ActorResponseMixIn
	Account   string
	Resources []glowmarkt.Resource
}

// GetReadingRequest asks a session actor for the current usage of one
// resource.
type GetReadingRequest struct {
	ActorRequestMixIn
	ResourceID string
}

type GetReadingResponse struct {
	ActorResponseMixIn
	ResourceID string
	Reading    *glowmarkt.Reading
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
