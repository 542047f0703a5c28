package config

import (
	"net"
	"strconv"
	"time"
)

// Config represents the main configuration structure
type Config struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	LogLevel       string        `mapstructure:"log_level"`
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Default values
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 3000
	DefaultLogLevel       = LogLevelInfo
	DefaultRequestTimeout = 5 * time.Second
	DefaultEnvFile        = ".env"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Environment variables bound to each key. The first one set wins.
var envBindings = map[string][]string{
	"host":            {"SERVER_HOST"},
	"port":            {"SERVER_PORT"},
	"log_level":       {"LOG_LEVEL"},
	"rpc_url":         {"INFURA_RINKEBY", "RPC_URL"},
	"request_timeout": {"REQUEST_TIMEOUT"},
}

// Addr returns the host:port the HTTP server binds to
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
