package config

import (
	"time"
)

// IngestConfig configures the gRPC ingestion server.
type IngestConfig struct {
	Port string `envconfig:"PORT" default:"50051"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// gRPC specific
	MaxConcurrentStreams uint32        `envconfig:"MAX_CONCURRENT_STREAMS" default:"100"`
	MaxRecvMsgBytes      int           `envconfig:"MAX_RECV_MSG_BYTES" default:"4194304" validate:"min=1024"`
	KeepaliveTime        time.Duration `envconfig:"KEEPALIVE_TIME" default:"120s"`
	KeepaliveTimeout     time.Duration `envconfig:"KEEPALIVE_TIMEOUT" default:"20s"`
	MaxConnectionAge     time.Duration `envconfig:"MAX_CONNECTION_AGE" default:"300s"`
}

// Validate performs validation on the IngestConfig.
func (c *IngestConfig) Validate() error {
	if err := validatePort(c.Port, "ingest"); err != nil {
		return err
	}

	if err := validateHost(c.Host, "ingest"); err != nil {
		return err
	}

	return nil
}

// Address returns the listen address in host:port format.
func (c *IngestConfig) Address() string {
	return c.Host + ":" + c.Port
}
