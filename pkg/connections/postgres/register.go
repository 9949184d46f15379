package postgres

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/connections"
)

func init() {
	connections.Register(connections.BackendRegistration{
		Info: connections.BackendInfo{
			Kind:        connections.KindPostgres,
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+ with multi-host failover",
		},
		Factory: func(cfg *config.ConnectionConfig, logger *zap.Logger) (connections.Backend, error) {
			return NewBackend(cfg, nil, logger), nil
		},
	})
}
