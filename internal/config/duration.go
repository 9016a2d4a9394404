package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a duration-valued field (busy_timeout,
// send_timeout, max_age). Empty means unset and yields zero so the
// owning component applies its own default; negative values are
// rejected because none of these knobs has a meaning below zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
