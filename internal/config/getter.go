package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const prefix = "GERRITEVENTS"

// Parse reads the configuration file given as parameter.
// Environment variables prefixed by GERRITEVENTS override file values (relay.publish.port -> GERRITEVENTS_RELAY_PUBLISH_PORT).
func Parse(confFile string) (*Config, error) {
	return parse(viper.New(), confFile)
}

func parse(v *viper.Viper, confFile string) (*Config, error) {
	conf := Config{}

	setDefault(v)

	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match

	if len(confFile) > 0 {
		v.SetConfigFile(confFile)

		err := v.ReadInConfig()
		if err != nil {
			return &conf, fmt.Errorf("failed to read config file %v: %w", confFile, err)
		}
	}

	err := v.Unmarshal(&conf)
	if err != nil {
		return &conf, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &conf, nil
}

// RepositoryMap indexes the configured repositories by project name.
func (s Scheduler) RepositoryMap() (map[string]Repository, error) {
	ret := make(map[string]Repository, len(s.Repositories))

	for _, repository := range s.Repositories {
		if repository.Name == "" {
			return nil, fmt.Errorf("repository with path %q has no name", repository.Path)
		}

		_, duplicate := ret[repository.Name]
		if duplicate {
			return nil, fmt.Errorf("repository %q is configured twice", repository.Name)
		}

		if repository.Path == "" || repository.Origin == "" || repository.Refs == "" {
			return nil, fmt.Errorf("repository %q needs path, origin and refs", repository.Name)
		}

		ret[repository.Name] = repository
	}

	return ret, nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("logs.level", 0)
	v.SetDefault("logs.encoder", EncoderTypeConsole)
	v.SetDefault("metrics.port", 7777)

	// relay
	v.SetDefault("relay.upstream.type", UpstreamTypeSSH)
	v.SetDefault("relay.upstream.ssh.port", 29418)
	v.SetDefault("relay.upstream.ssh.command", "gerrit stream-events")
	v.SetDefault("relay.upstream.ssh.timeout", "10s")
	v.SetDefault("relay.upstream.kafka.broker.version", "3.6.0")
	v.SetDefault("relay.upstream.kafka.broker.creds.mechanism", "SCRAM-SHA-512")
	v.SetDefault("relay.upstream.kafka.consumer.topic", "gerrit")
	v.SetDefault("relay.upstream.kafka.consumer.group", "gerrit-events-relay")
	v.SetDefault("relay.events", []string{"ref-replication-done"})
	v.SetDefault("relay.publish.port", 5556)
	v.SetDefault("relay.publish.topic", "gerritstream")
	v.SetDefault("relay.heartbeat.period", "10s")
	v.SetDefault("relay.retry.maxAttempt", 3)
	v.SetDefault("relay.retry.delay", "1s")

	// scheduler
	v.SetDefault("scheduler.topic", "gerritstream")
	v.SetDefault("scheduler.triggerKinds", []string{"ref-replication-done"})
	v.SetDefault("scheduler.heartbeat.period", "10s")
	v.SetDefault("scheduler.heartbeat.maxMissed", 5)
	v.SetDefault("scheduler.fetch.gitBinary", "git")
	v.SetDefault("scheduler.history.expiration", "168h")
	v.SetDefault("scheduler.history.keyPrefix", "gerrit-events:fetch:")
	v.SetDefault("scheduler.dial.delay", "2s")
	v.SetDefault("scheduler.dial.maxDelay", "30s")
	v.SetDefault("scheduler.dial.idleTimeout", "35s")
}
