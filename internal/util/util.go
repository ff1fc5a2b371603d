package util

import (
	"glow2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Glowmarkt: config.GlowmarktConfig{
			BaseURL:       "https://localhost/api/v0-1/",
			ApplicationId: "test-app",
			Accounts: []config.AccountConfig{
				{
					Name:     "home",
					Username: "me@example.com",
					Password: "hunter2",
				},
			},
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "glow2mqtt",
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis: 100,
			Timezone:           "Europe/London",
		},
		Port: 8080,
	}
}
