package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "glow2mqtt/internal/adapter/actor"
	"glow2mqtt/internal/adapter/credstore"
	"glow2mqtt/internal/config"
	"glow2mqtt/internal/core/actor"
	"glow2mqtt/internal/core/service"
	"glow2mqtt/internal/server"
	"glow2mqtt/internal/util/actorutil"
	"glow2mqtt/pkg/glowmarkt"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// default application id of the official Glow apps
const defaultApplicationId = "b0f1b774-a586-4f72-9edd-27ead8aa7a8d"

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	// init session actor provider
	sessionProv, err := sessionActorProvider(cfg, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfMetersActor(*cfg, sessionProv, mqttActorProvider(cfg, logger), logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => GLOW2MQTT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("GLOW2MQTT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("glow2mqtt")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// single-account setup can skip the accounts list entirely
	if len(cfg.Glowmarkt.Accounts) == 0 {
		username := viper.GetString("glowmarkt.username")
		password := viper.GetString("glowmarkt.password")
		if username != "" {
			cfg.Glowmarkt.Accounts = []config.AccountConfig{
				{Username: username, Password: password},
			}
		}
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if cfg.MonitorConfig.PollIntervalMillis < 1000 {
		return nil, errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}
	if _, err := service.NewResetClock(cfg.MonitorConfig.Timezone); err != nil {
		return nil, fmt.Errorf("config param monitor.timezone is not a valid IANA timezone: %w", err)
	}

	// check accounts
	if len(cfg.Glowmarkt.Accounts) == 0 {
		return nil, errors.New("no accounts configured. set glowmarkt.username/glowmarkt.password or an accounts list")
	}
	for _, account := range cfg.Glowmarkt.Accounts {
		if account.Username == "" || account.Password == "" {
			return nil, errors.New("every account needs a username and a password")
		}
	}

	return &cfg, nil
}

func sessionActorProvider(cfg *config.Config, logger *zap.Logger) (actor.SessionActorProvider, error) {

	store, err := credstore.NewFileStore(cfg.Glowmarkt.CredentialsDir)
	if err != nil {
		return nil, err
	}

	return func(account config.AccountConfig) *adactor.GlowSessionActor {
		// one client per account, each session owns its token
		client := glowmarkt.NewClient(cfg.Glowmarkt.BaseURL, cfg.Glowmarkt.ApplicationId, "")
		return adactor.NewGlowSessionActor(account, client, store, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.ha_discovery_enable", true)
	viper.SetDefault("mqtt.base_topic", "glow2mqtt")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("glowmarkt.base_url", glowmarkt.DefaultBaseURL)
	viper.SetDefault("glowmarkt.application_id", defaultApplicationId)
	viper.SetDefault("glowmarkt.credentials_dir", "data/credentials")
	viper.SetDefault("monitor.poll_interval_millis", 60000)
	viper.SetDefault("monitor.timezone", service.DefaultTimezone)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	accounts := make([]config.AccountConfig, len(cfg.Glowmarkt.Accounts))
	copy(accounts, cfg.Glowmarkt.Accounts)
	for i := range accounts {
		accounts[i].Password = "*redacted*"
	}
	cfg.Glowmarkt.Accounts = accounts
	slog.Info("Using", "config", cfg)
}
