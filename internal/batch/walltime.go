package batch

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseWalltime parses a Slurm walltime string in one of its accepted
// forms: "D-HH:MM:SS", "HH:MM:SS", "MM:SS", or a bare number of minutes.
func ParseWalltime(walltime string) (time.Duration, error) {
	walltime = strings.TrimSpace(walltime)
	if walltime == "" {
		return 0, fmt.Errorf("empty walltime")
	}

	var days int
	rest := walltime
	if idx := strings.IndexByte(walltime, '-'); idx >= 0 {
		d, err := strconv.Atoi(walltime[:idx])
		if err != nil {
			return 0, fmt.Errorf("invalid walltime day component %q: %w", walltime, err)
		}
		days = d
		rest = walltime[idx+1:]
	}

	parts := strings.Split(rest, ":")
	var hours, minutes, seconds int
	var err error
	switch len(parts) {
	case 1:
		minutes, err = strconv.Atoi(parts[0])
	case 2:
		minutes, err = strconv.Atoi(parts[0])
		if err == nil {
			seconds, err = strconv.Atoi(parts[1])
		}
	case 3:
		hours, err = strconv.Atoi(parts[0])
		if err == nil {
			minutes, err = strconv.Atoi(parts[1])
		}
		if err == nil {
			seconds, err = strconv.Atoi(parts[2])
		}
	default:
		return 0, fmt.Errorf("invalid walltime %q", walltime)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid walltime %q: %w", walltime, err)
	}

	total := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	return total, nil
}
