package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/dbconnect/pkg/apperrors"
	"github.com/ekaya-inc/dbconnect/pkg/config"
	"github.com/ekaya-inc/dbconnect/pkg/connections"
	_ "github.com/ekaya-inc/dbconnect/pkg/connections/exasol"
	_ "github.com/ekaya-inc/dbconnect/pkg/connections/mssql"
	_ "github.com/ekaya-inc/dbconnect/pkg/connections/postgres"
	"github.com/ekaya-inc/dbconnect/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

// checkTimeout bounds each connection check.
const checkTimeout = 30 * time.Second

// checkResult is one entry of the report written to stdout.
type checkResult struct {
	Name   string            `yaml:"name"`
	Kind   string            `yaml:"kind"`
	OK     bool              `yaml:"ok"`
	Error  string            `yaml:"error,omitempty"`
	Fields map[string]string `yaml:"fields,omitempty"`
}

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.Int("connections", len(cfg.Connections)),
		zap.Any("backends", connections.RegisteredBackends()),
	)

	results := make([]checkResult, 0, len(cfg.Connections))
	failed := false
	for i := range cfg.Connections {
		res := check(&cfg.Connections[i], logger)
		failed = failed || !res.OK
		results = append(results, res)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(results); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	enc.Close()

	if failed {
		os.Exit(1)
	}
}

// check establishes and releases one connection.
func check(connCfg *config.ConnectionConfig, logger *zap.Logger) checkResult {
	res := checkResult{Name: connCfg.Name, Kind: connCfg.Kind}

	connector, err := connections.New(connCfg, logger)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	defer func() {
		if err := connector.Close(ctx); err != nil {
			logger.Warn("close failed", zap.String("connection", connCfg.Name), logging.Error(err))
		}
	}()

	if _, err := connector.GetConnection(ctx); err != nil {
		var connErr *apperrors.ConnectionError
		if errors.As(err, &connErr) {
			res.Error = string(connErr.Kind)
			res.Fields = connErr.Fields
		} else {
			res.Error = err.Error()
		}
		return res
	}

	res.OK = true
	return res
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Env == "local" {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = level
	// Logs go to stderr so the report on stdout stays parseable.
	zapCfg.OutputPaths = []string{"stderr"}
	return zapCfg.Build()
}
