package glowmarkt

import (
	"context"
	"fmt"
)

// TestClient is an in-memory stand-in for the real API. Calls fail with
// ErrInvalidAuth while the held token differs from AcceptToken, which makes
// stale-token repair flows scriptable from tests.
type TestClient struct {
	Token       string
	AcceptToken string
	AuthToken   string
	AuthErr     error
	Resources   []Resource
	Readings    map[string]*Reading
	AuthCalls   int
}

func NewTestClient() *TestClient {
	return &TestClient{
		Token:       "test-token",
		AcceptToken: "test-token",
		AuthToken:   "test-token",
		Resources: []Resource{
			{
				ID:         "6ff3cbc6-0b2d-4b4b-a16a-a2a0beed4e1b",
				Label:      "electricity consumption",
				Classifier: ClassifierElectricityConsumption,
				SourceType: SourceElectricity,
			},
			{
				ID:         "aa1e5d46-e4e9-4092-8bbe-6a7e2a43be2f",
				Label:      "gas consumption",
				Classifier: ClassifierGasConsumption,
				SourceType: SourceGas,
			},
			{
				ID:         "0ca2cd23-07a2-4a72-8c5b-0fa6bd22c793",
				Label:      "electricity cost",
				Classifier: "electricity.consumption.cost",
				SourceType: SourceElectricity,
			},
		},
		Readings: map[string]*Reading{
			"6ff3cbc6-0b2d-4b4b-a16a-a2a0beed4e1b": {
				Data:  [][2]float64{{1719792000, 0.42}},
				Units: "kWh",
			},
			"aa1e5d46-e4e9-4092-8bbe-6a7e2a43be2f": {
				Data:  [][2]float64{{1719792000, 1.07}},
				Units: "kWh",
			},
		},
	}
}

func (c *TestClient) SetToken(token string) {
	c.Token = token
}

func (c *TestClient) Authenticate(_ context.Context, _, _ string) (*Auth, error) {
	c.AuthCalls++
	if c.AuthErr != nil {
		return nil, c.AuthErr
	}
	return &Auth{Token: c.AuthToken}, nil
}

func (c *TestClient) RetrieveResources(_ context.Context) ([]Resource, error) {
	if c.Token != c.AcceptToken {
		return nil, ErrInvalidAuth
	}
	return c.Resources, nil
}

func (c *TestClient) CurrentUsage(_ context.Context, resourceID string) (*Reading, error) {
	if c.Token != c.AcceptToken {
		return nil, ErrInvalidAuth
	}
	reading, ok := c.Readings[resourceID]
	if !ok {
		return nil, fmt.Errorf("unknown resource %s", resourceID)
	}
	return reading, nil
}
