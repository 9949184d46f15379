package mssql

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/connections"
)

func init() {
	connections.Register(connections.BackendRegistration{
		Info: connections.BackendInfo{
			Kind:        connections.KindMSSQL,
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2019+, Azure SQL Database",
		},
		Factory: func(cfg *config.ConnectionConfig, logger *zap.Logger) (connections.Backend, error) {
			return NewBackend(cfg, nil, logger), nil
		},
	})
}
