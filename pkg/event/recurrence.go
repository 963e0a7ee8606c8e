package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// ErrInvalidRecurrence marks a recurrence specification that cannot be
// compiled into a rule. A partially-formed rule is never persisted.
var ErrInvalidRecurrence = errors.New("invalid recurrence specification")

// RecurrenceOptions is the structured recurrence specification accepted on
// create and update. Frequency is required; Interval defaults to 1.
type RecurrenceOptions struct {
	Frequency  string
	Interval   int
	Count      int
	Until      *time.Time
	ByWeekday  []string
	ByMonthDay []int
}

var frequencies = map[string]rrule.Frequency{
	"DAILY":   rrule.DAILY,
	"WEEKLY":  rrule.WEEKLY,
	"MONTHLY": rrule.MONTHLY,
	"YEARLY":  rrule.YEARLY,
}

var weekdays = map[string]rrule.Weekday{
	"MO": rrule.MO,
	"TU": rrule.TU,
	"WE": rrule.WE,
	"TH": rrule.TH,
	"FR": rrule.FR,
	"SA": rrule.SA,
	"SU": rrule.SU,
}

// CompileRecurrence converts a recurrence specification into a canonical
// RRULE string (RFC 5545 subset). Count and Until are both encoded when both
// are given; the rule engine applies whichever bound is limiting.
func CompileRecurrence(options RecurrenceOptions) (string, error) {
	freq, ok := frequencies[strings.ToUpper(strings.TrimSpace(options.Frequency))]
	if !ok {
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrence, options.Frequency)
	}

	ruleOptions := rrule.ROption{
		Freq:     freq,
		Interval: options.Interval,
	}
	if ruleOptions.Interval <= 0 {
		ruleOptions.Interval = 1
	}
	if options.Count > 0 {
		ruleOptions.Count = options.Count
	}
	if options.Until != nil {
		ruleOptions.Until = *options.Until
	}
	for _, day := range options.ByWeekday {
		weekday, ok := weekdays[strings.ToUpper(strings.TrimSpace(day))]
		if !ok {
			return "", fmt.Errorf("%w: unknown weekday %q", ErrInvalidRecurrence, day)
		}
		ruleOptions.Byweekday = append(ruleOptions.Byweekday, weekday)
	}
	if len(options.ByMonthDay) > 0 {
		ruleOptions.Bymonthday = options.ByMonthDay
	}

	rule, err := rrule.NewRRule(ruleOptions)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	return rule.OrigOptions.RRuleString(), nil
}

// ExpandInstances materializes the occurrences of a recurring master that
// fall within [from, to], both boundaries inclusive. The master's start time
// anchors the rule and its duration is preserved on every occurrence.
//
// A rule that fails to parse yields an empty list: expansion failures are
// isolated per master and never abort the overall read. The result is a pure
// function of (master, from, to), so instance ids are stable across refetches.
func ExpandInstances(master Event, from, to time.Time) []Instance {
	if master.RecurringRule == "" {
		return nil
	}

	rule, err := rrule.StrToRRule(master.RecurringRule)
	if err != nil {
		log.Errorf("failed to parse recurrence rule %q of event %s: %v", master.RecurringRule, master.ID, err)
		return nil
	}
	rule.DTStart(master.StartTime)

	occurrences := rule.Between(from, to, true)
	if len(occurrences) == 0 {
		return nil
	}

	duration := master.Duration()
	instances := make([]Instance, 0, len(occurrences))
	for _, start := range occurrences {
		instances = append(instances, Instance{
			ID:              fmt.Sprintf("%s_%d", master.ID, start.UnixMilli()),
			OriginalEventID: master.ID,
			Title:           master.Title,
			Description:     master.Description,
			StartTime:       start,
			EndTime:         start.Add(duration),
			AllDay:          master.AllDay,
			Location:        master.Location,
			OwnerID:         master.OwnerID,
			Attendees:       master.Attendees,
			Color:           master.Color,
			RecurrenceID:    master.StartTime,
		})
	}
	return instances
}
