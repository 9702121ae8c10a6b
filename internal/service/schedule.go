package service

import (
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ParseSchedule turns a schedule expression into the interval between two
// consecutive runs. Accepted forms: a Go duration ("90s", "5m"), a cron
// macro ("@hourly", "@every 10m") or a 5-field cron expression. Irregular
// cron schedules collapse to the gap between their next two occurrences.
func ParseSchedule(expr string) (time.Duration, error) {
	e := strings.TrimSpace(expr)
	if e == "" {
		return 0, errors.New("empty schedule expression")
	}

	if d, err := time.ParseDuration(e); err == nil {
		if d <= 0 {
			return 0, errors.New("schedule must be positive")
		}
		return d, nil
	}

	// Macros / @every handled by ParseStandard (it also supports plain 5-field specs).
	var schedule cron.Schedule
	var err error
	if strings.HasPrefix(e, "@") {
		schedule, err = cron.ParseStandard(e)
	} else {
		parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		schedule, err = parser5.Parse(e)
	}
	if err != nil {
		return 0, err
	}
	next1 := schedule.Next(time.Now())
	next2 := schedule.Next(next1)
	return next2.Sub(next1), nil
}
