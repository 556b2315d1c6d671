package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Ошибки расписания.
var (
	ErrNoSchedule        = errors.New("schedule has neither cron expression nor interval")
	ErrAmbiguousSchedule = errors.New("schedule has both cron expression and interval")
	ErrInvalidInterval   = errors.New("interval must be positive")
)

// Schedule — расписание повторного выполнения скрипта.
// Задаётся либо CronExpr, либо Interval.
type Schedule struct {
	CronExpr string
	Interval time.Duration

	// Timezone — IANA-имя зоны для cron (default: UTC).
	Timezone string
}

// IsCron возвращает true для расписания по cron-выражению.
func (s Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// Validate проверяет расписание.
func (s Schedule) Validate() error {
	switch {
	case s.CronExpr == "" && s.Interval == 0:
		return ErrNoSchedule
	case s.CronExpr != "" && s.Interval != 0:
		return ErrAmbiguousSchedule
	case s.Interval < 0:
		return ErrInvalidInterval
	case s.IsCron():
		return ValidateCronExpr(s.CronExpr)
	}
	return nil
}

// NextDue вычисляет следующее время выполнения после from.
// Для интервалов просто добавляет Interval к from.
//
// Cron-выражение вычисляется в зоне Timezone; невалидная зона даёт UTC.
func NextDue(s Schedule, from time.Time) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}

	if !s.IsCron() {
		return from.Add(s.Interval).UTC(), nil
	}

	loc := time.UTC
	if s.Timezone != "" {
		if l, err := time.LoadLocation(s.Timezone); err == nil {
			loc = l
		}
	}

	schedule, err := cronParser.Parse(s.CronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", s.CronExpr, err)
	}
	return schedule.Next(from.In(loc)).UTC(), nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}
