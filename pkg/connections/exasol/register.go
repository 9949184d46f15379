package exasol

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/connections"
)

func init() {
	connections.Register(connections.BackendRegistration{
		Info: connections.BackendInfo{
			Kind:        connections.KindExasol,
			DisplayName: "Exasol",
			Description: "Connect to Exasol 7.1+ over the WebSocket protocol",
		},
		Factory: func(cfg *config.ConnectionConfig, logger *zap.Logger) (connections.Backend, error) {
			return NewBackend(cfg, nil, logger), nil
		},
	})
}
