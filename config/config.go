// Package config loads engine and per-socket tunables from a YAML file,
// adapted from the teacher's config.LoadConfig("config.yaml") call site in
// test/testserver/main.go. The teacher's own config.go held nothing but a
// handful of package-level constants (ServerIP, ClientPortLower/Upper,
// ...); this version makes those constants overridable at runtime, which
// is what every call site in the teacher's test/ programs already assumed
// existed.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-tcpstack/tcpstack/tcp"
)

// EngineConfig holds the process-wide defaults: which address a listener
// binds by default, and an ephemeral-port range. The tcp.Table port
// allocator uses tcp.EphemeralMin/EphemeralMax and does not read
// ClientPortLower/ClientPortUpper.
type EngineConfig struct {
	ServerIP        string `yaml:"server_ip"`
	ServerPort      int    `yaml:"server_port"`
	ClientIP        string `yaml:"client_ip"`
	ClientPortLower int    `yaml:"client_port_lower"`
	ClientPortUpper int    `yaml:"client_port_upper"`
}

// SocketConfig holds the per-connection tunables spec.md §6 lists: MSS
// bounds, side-buffer sizes, the listener backlog default, and the
// blocking-call timeout.
type SocketConfig struct {
	DefaultMSS     int           `yaml:"default_mss"`
	MaxMSS         int           `yaml:"max_mss"`
	TxBufferSize   int           `yaml:"tx_buffer_size"`
	RxBufferSize   int           `yaml:"rx_buffer_size"`
	SynQueueSize   int           `yaml:"syn_queue_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func defaultEngineConfig() EngineConfig {
	return EngineConfig{
		ServerIP:        "127.0.0.2",
		ServerPort:      7080,
		ClientIP:        "127.0.0.3",
		ClientPortLower: tcp.EphemeralMin,
		ClientPortUpper: tcp.EphemeralMax,
	}
}

func defaultSocketConfig() SocketConfig {
	return SocketConfig{
		DefaultMSS:     tcp.DefaultMSS,
		MaxMSS:         tcp.MaxMSS,
		TxBufferSize:   tcp.MaxTxBufferSize,
		RxBufferSize:   tcp.MaxRxBufferSize,
		SynQueueSize:   tcp.DefaultSynQueueSize,
		ConnectTimeout: tcp.DefaultSocketTimeout,
	}
}

// LoadConfig reads path as YAML and returns the engine and socket configs,
// falling back to the engine's built-in defaults for any field the file
// omits. A missing file is an error, matching the teacher's
// log.Fatalln("Configurtion file error:", err) call site.
func LoadConfig(path string) (*EngineConfig, *SocketConfig, error) {
	raw := struct {
		Engine EngineConfig `yaml:"engine"`
		Socket SocketConfig `yaml:"socket"`
	}{
		Engine: defaultEngineConfig(),
		Socket: defaultSocketConfig(),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, errors.Wrap(err, "parsing config file")
	}
	return &raw.Engine, &raw.Socket, nil
}
