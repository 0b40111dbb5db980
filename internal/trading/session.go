package trading

import (
	"fmt"
	"time"

	"tradesim/internal/models"
)

// NextReset returns the next UTC instant at which a game mode's competition restarts.
// The result is always strictly after now.
func NextReset(mode models.GameMode, now time.Time) (time.Time, error) {
	now = now.UTC()
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	switch mode {
	case models.GameModeDaily:
		return midnight.AddDate(0, 0, 1), nil
	case models.GameModeWeekly:
		days := (8 - int(now.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return midnight.AddDate(0, 0, days), nil
	case models.GameModeMonthly:
		return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC), nil
	case models.GameModeYearly:
		return time.Date(y+1, time.January, 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("unknown game mode %q", mode)
	}
}

// TimeRemaining is the countdown to the next reset.
type TimeRemaining struct {
	Days         int   `json:"days"`
	Hours        int   `json:"hours"`
	Minutes      int   `json:"minutes"`
	Seconds      int   `json:"seconds"`
	TotalSeconds int64 `json:"total_seconds"`
}

func (t TimeRemaining) String() string {
	return fmt.Sprintf("%dd %02dh %02dm %02ds", t.Days, t.Hours, t.Minutes, t.Seconds)
}

// Countdown returns the time left in the current game of mode.
func Countdown(mode models.GameMode, now time.Time) (TimeRemaining, time.Time, error) {
	next, err := NextReset(mode, now)
	if err != nil {
		return TimeRemaining{}, time.Time{}, err
	}
	total := int64(next.Sub(now.UTC()) / time.Second)
	if total < 0 {
		total = 0
	}
	return TimeRemaining{
		Days:         int(total / 86400),
		Hours:        int(total % 86400 / 3600),
		Minutes:      int(total % 3600 / 60),
		Seconds:      int(total % 60),
		TotalSeconds: total,
	}, next, nil
}
