package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel  zapcore.Level
	Glowmarkt GlowmarktConfig `mapstructure:"glowmarkt"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`

	MonitorConfig MonitorConfig `mapstructure:"monitor"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

type GlowmarktConfig struct {
	BaseURL        string          `mapstructure:"base_url"`
	ApplicationId  string          `mapstructure:"application_id"`
	CredentialsDir string          `mapstructure:"credentials_dir"`
	Accounts       []AccountConfig `mapstructure:"accounts"`
}

type AccountConfig struct {
	// Name keys the account's session actor and credential file. Defaults to
	// a sanitized username when empty.
	Name     string
	Username string
	Password string
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	Timezone           string `mapstructure:"timezone"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

var accountNameRegexp = regexp.MustCompile(`[^a-z0-9_]+`)

// AccountName resolves the key used for the session actor id and the
// credential file.
func (a AccountConfig) AccountName() string {
	name := a.Name
	if name == "" {
		name = a.Username
	}
	return accountNameRegexp.ReplaceAllString(strings.ToLower(name), "_")
}
