package mssql

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/ekaya-inc/dbconnect/pkg/config"
)

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// splitAddress parses a single host[:port] address.
func splitAddress(dsn string) (string, int, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", 0, fmt.Errorf("empty address")
	}
	if strings.Contains(dsn, ",") {
		return "", 0, fmt.Errorf("multiple addresses are not supported: %q", dsn)
	}

	idx := strings.LastIndex(dsn, ":")
	if idx < 0 {
		return dsn, DefaultPort(), nil
	}

	host := dsn[:idx]
	port, err := strconv.Atoi(dsn[idx+1:])
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q", dsn)
	}
	if host == "" {
		return "", 0, fmt.Errorf("empty host in %q", dsn)
	}
	return host, port, nil
}

// buildConnectionString builds a sqlserver:// URL with escaped credentials.
// Backend params become query parameters; dbname maps to "database".
func buildConnectionString(cfg *config.ConnectionConfig) (string, error) {
	host, port, err := splitAddress(cfg.DSN)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	if cfg.HasDBName() {
		query.Add("database", cfg.DBName)
	}

	keys := make([]string, 0, len(cfg.Params))
	for k := range cfg.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		query.Add(k, fmt.Sprint(cfg.Params[k]))
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}
