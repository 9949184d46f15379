package connections

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconnect/pkg/config"
)

// Kind identifies a database backend.
type Kind string

const (
	KindExasol   Kind = "exasol"
	KindPostgres Kind = "postgres"
	KindMSSQL    Kind = "mssql"
)

// ParseKind normalizes a configured backend name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindExasol, KindPostgres, KindMSSQL:
		return k, nil
	case "postgresql":
		return KindPostgres, nil
	case "sqlserver":
		return KindMSSQL, nil
	default:
		return "", fmt.Errorf("unknown backend kind %q", s)
	}
}

// BackendInfo describes a registered backend.
type BackendInfo struct {
	Kind        Kind   `json:"kind" yaml:"kind"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Description string `json:"description" yaml:"description"`
}

// BackendFactory builds a backend for one connection configuration.
type BackendFactory func(cfg *config.ConnectionConfig, logger *zap.Logger) (Backend, error)

// BackendRegistration contains info + factory for a backend.
type BackendRegistration struct {
	Info    BackendInfo
	Factory BackendFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[Kind]BackendRegistration)
)

// Register is called by each backend's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg BackendRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Kind] = reg
}

// RegisteredBackends returns info for all registered backends, sorted by kind.
func RegisteredBackends() []BackendInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]BackendInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Kind < result[j].Kind })
	return result
}

// GetFactory returns the factory for a backend kind.
// Returns nil if kind is not registered.
func GetFactory(kind Kind) BackendFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[kind]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if a backend kind is available.
func IsRegistered(kind Kind) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}
