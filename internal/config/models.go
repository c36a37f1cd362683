package config

import "time"

type Config struct {
	Metrics   Metrics
	Logs      Logs
	Relay     Relay
	Scheduler Scheduler
}

type Metrics struct {
	Port int
}

type Logs struct {
	Level   int
	Encoder EncoderType
	File    string
}

type EncoderType string

const (
	EncoderTypeJson    EncoderType = "json"
	EncoderTypeConsole EncoderType = "console"
)

// Relay

type Relay struct {
	Upstream        Upstream
	Events          []string
	Publish         Publish
	Heartbeat       Heartbeat
	DeadLetterQueue S3
	Retry           Retry
}

type UpstreamType string

const (
	UpstreamTypeSSH   UpstreamType = "ssh"
	UpstreamTypeKafka UpstreamType = "kafka"
)

type Upstream struct {
	Type  UpstreamType
	SSH   SSH
	Kafka Kafka
}

type SSH struct {
	Host           string
	Port           int
	User           string
	KeyFile        string
	KnownHostsFile string
	UseAgent       bool
	Command        string
	Timeout        time.Duration
}

type Publish struct {
	Port  int
	Topic string
}

type Heartbeat struct {
	Period time.Duration
}

type Retry struct {
	MaxAttempt uint
	Delay      time.Duration
}

type S3 struct {
	Bucket       string
	KeyPrefix    string
	BaseEndpoint string
	Region       string
	UsePathStyle bool
	Creds        AWSCreds
}

type AWSCreds struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (c AWSCreds) String() string {
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		return "creds set"
	}

	return "no creds"
}

type Kafka struct {
	Broker   KafkaBroker
	Consumer KafkaConsumer
}

type KafkaBroker struct {
	URLs    string
	Version string
	TLS     bool
	Creds   KafkaCreds
}

type KafkaCreds struct {
	Mechanism string
	Username  string
	Password  string
}

func (c KafkaCreds) String() string {
	if c.Username != "" && c.Password != "" {
		return "creds set (" + c.Mechanism + ")"
	}

	return "no creds"
}

type KafkaConsumer struct {
	Topic string
	Group string
}

// Scheduler

type Scheduler struct {
	Relays       []string
	Topic        string
	TriggerKinds []string
	Heartbeat    HeartbeatMonitor
	Fetch        Fetch
	Repositories []Repository
	History      History
	Dial         Dial
}

type HeartbeatMonitor struct {
	Period    time.Duration
	MaxMissed int
}

// Dial tunes the relay connections. Relays are dialed until they answer, with a delay growing up to MaxDelay.
// A connection silent for IdleTimeout is dialed again.
type Dial struct {
	Delay       time.Duration
	MaxDelay    time.Duration
	IdleTimeout time.Duration
}

type Fetch struct {
	GitBinary string
}

// Repository maps a project name coming from the relay to a local clone.
// Kept as a list since viper lowercases map keys and project names are case sensitive.
type Repository struct {
	Name   string
	Path   string
	Origin string
	Refs   string
}

type History struct {
	Valkey     Valkey
	Expiration time.Duration
	KeyPrefix  string
}

type Valkey struct {
	URL   string
	Creds ValkeyCreds
}

type ValkeyCreds struct {
	Password string
}

func (c ValkeyCreds) String() string {
	if c.Password != "" {
		return "password set"
	}

	return "no password"
}
