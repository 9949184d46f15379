package postgres

import (
	"fmt"
	"strings"
)

// ParseAddresses converts a comma-separated host:port list into libpq
// keyword/value address strings, keeping the input order:
//
//	"localhost:8888, 127.0.0.1:6543" -> ["host=localhost port=8888", "host=127.0.0.1 port=6543"]
//
// Each segment is split on its last colon. A segment without a colon is an
// error.
func ParseAddresses(dsn string) ([]string, error) {
	segments := strings.Split(dsn, ",")
	addrs := make([]string, 0, len(segments))

	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		idx := strings.LastIndex(seg, ":")
		if idx < 0 {
			return nil, fmt.Errorf("invalid address %q: expected host:port", seg)
		}
		addrs = append(addrs, fmt.Sprintf("host=%s port=%s", seg[:idx], seg[idx+1:]))
	}
	return addrs, nil
}
