package rpc

import (
	"os"
	"strconv"
	"time"
)

// Config holds the operational tuning knobs named in spec §6, each
// overridable by an environment variable and otherwise defaulted here.
type Config struct {
	MaxRequestBytes   uint32
	MaxClientRoutes   int
	MaxServerRoutes   int
	ClientTimeout     time.Duration
	OrphanTTL         time.Duration
	ClientStallWarn   time.Duration
	PendingLogPeriod  time.Duration
	Trace             bool
	TracePath         string
}

// DefaultConfig returns Config populated from environment variables,
// falling back to the defaults spec §6 specifies.
func DefaultConfig() Config {
	return Config{
		MaxRequestBytes:  envUint32("PLEX_RPC_MAX_REQUEST_BYTES", 262144),
		MaxClientRoutes:  envInt("PLEX_RPC_MAX_CLIENT_ROUTES", 256),
		MaxServerRoutes:  envInt("PLEX_RPC_MAX_SERVER_ROUTES", 256),
		ClientTimeout:    envMillis("PLEX_RPC_CLIENT_TIMEOUT_MS", 0),
		OrphanTTL:        envMillis("PLEX_RPC_ORPHAN_TTL_MS", 2000),
		ClientStallWarn:  envMillis("PLEX_RPC_CLIENT_STALL_WARN_MS", 0),
		PendingLogPeriod: envMillis("PLEX_RPC_PENDING_LOG_MS", 0),
		Trace:            envBool("PLEX_RPC_TRACE"),
		TracePath:        os.Getenv("PLEX_RPC_TRACE_PATH"),
	}
}

func envUint32(key string, def uint32) uint32 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envMillis(key string, defMs int) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return time.Duration(defMs) * time.Millisecond
}

func envBool(key string) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
