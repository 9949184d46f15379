package exasol

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ekaya-inc/dbconnect/pkg/config"
)

// DefaultPort is used by the driver when an address omits the port.
const DefaultPort = 8563

// Params returns the effective driver parameters for cfg: compression is on
// by default, schema is added when configured and cfg.Params override both.
func Params(cfg *config.ConnectionConfig) map[string]any {
	params := map[string]any{"compression": true}
	if cfg.HasSchema() {
		params["schema"] = cfg.Schema
	}
	for k, v := range cfg.Params {
		params[k] = v
	}
	return params
}

// BuildDSN renders the exasol-driver-go data source name:
//
//	exa:<addresses>;user=<user>;password=<password>;<param>=<value>...
//
// Parameters are emitted in key order so the result is deterministic.
func BuildDSN(cfg *config.ConnectionConfig) string {
	var b strings.Builder
	b.WriteString("exa:")
	b.WriteString(strings.TrimSpace(cfg.DSN))
	fmt.Fprintf(&b, ";user=%s;password=%s", escapeValue(cfg.User), escapeValue(cfg.Password))

	params := Params(cfg)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", k, escapeValue(formatValue(params[k])))
	}
	return b.String()
}

// ValidateAddress checks the address list before it is handed to the driver.
// Accepted forms: "host:port", "host1..3:port", "host1,host2:port" and
// "host1:port1,host2:port2". A missing port falls back to DefaultPort.
func ValidateAddress(dsn string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return fmt.Errorf("empty address")
	}
	if strings.ContainsAny(dsn, ";\n") {
		return fmt.Errorf("address must not contain parameters")
	}

	for _, seg := range strings.Split(dsn, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return fmt.Errorf("empty host in address list")
		}

		host := seg
		if idx := strings.LastIndex(seg, ":"); idx >= 0 {
			host = seg[:idx]
			port, err := strconv.Atoi(seg[idx+1:])
			if err != nil || port <= 0 || port > 65535 {
				return fmt.Errorf("invalid port in %q", seg)
			}
		}
		if host == "" {
			return fmt.Errorf("empty host in %q", seg)
		}
	}
	return nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "1"
		}
		return "0"
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// escapeValue protects the DSN separator inside values.
func escapeValue(s string) string {
	return strings.ReplaceAll(s, ";", `\;`)
}
