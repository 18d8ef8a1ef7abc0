package schedule

import (
	"fmt"
	"sort"

	"github.com/cuemby/autoscaler/pkg/types"
)

// Schedule maps every minute of a day to a formation id
type Schedule [types.MinutesPerDay]string

// At returns the formation id planned for minute (clamped to the day)
func (s *Schedule) At(minute int) string {
	if minute < 0 {
		minute = 0
	}
	if minute >= types.MinutesPerDay {
		minute = types.MinutesPerDay - 1
	}
	return s[minute]
}

// Transition marks the minute at which the planned formation changes
type Transition struct {
	Minute    int
	Formation string
}

// Clock renders the transition minute as HH:MM
func (t Transition) Clock() string {
	return fmt.Sprintf("%02d:%02d", t.Minute/60, t.Minute%60)
}

// Transitions collapses the schedule into its change points. The first
// entry is always minute 0.
func (s *Schedule) Transitions() []Transition {
	out := []Transition{{Minute: 0, Formation: s[0]}}
	for i := 1; i < types.MinutesPerDay; i++ {
		if s[i] != s[i-1] {
			out = append(out, Transition{Minute: i, Formation: s[i]})
		}
	}
	return out
}

// Input is everything a compilation pass reads
type Input struct {
	Plans      []*types.Plan
	Formations []*types.Formation
	Apps       []*types.ManagedApp
	Holidays   *types.HolidayCalendar
	Weekday    types.Weekday
	Date       string // YYYY-MM-DD
}

// Result holds one schedule per compiled app plus the references that
// could not be resolved
type Result struct {
	Schedules map[string]*Schedule
	Holiday   bool
	Errors    []error
}

// ReferenceError is a dangling plan or formation id in the roster
type ReferenceError struct {
	App       string
	Plan      string
	Formation string
	Reason    string
}

func (e *ReferenceError) Error() string {
	switch {
	case e.Plan != "" && e.Formation != "":
		return fmt.Sprintf("app %s: plan %s: formation %s: %s", e.App, e.Plan, e.Formation, e.Reason)
	case e.Plan != "":
		return fmt.Sprintf("app %s: plan %s: %s", e.App, e.Plan, e.Reason)
	default:
		return fmt.Sprintf("app %s: formation %s: %s", e.App, e.Formation, e.Reason)
	}
}

// trigger is an eligible plan resolved for one app
type trigger struct {
	minute    int
	formation string
}

// Compile materialises the per-minute target formation of every app for
// one day. It never fails as a whole: unresolvable references are skipped
// and reported in Result.Errors.
func Compile(in Input) *Result {
	res := &Result{
		Schedules: make(map[string]*Schedule, len(in.Apps)),
		Holiday:   in.Holidays.IsHoliday(in.Date),
	}

	plans := make(map[string]*types.Plan, len(in.Plans))
	for _, p := range in.Plans {
		plans[p.ID] = p
	}
	formations := make(map[string]struct{}, len(in.Formations))
	for _, f := range in.Formations {
		formations[f.ID] = struct{}{}
	}

	for _, app := range in.Apps {
		if _, ok := formations[app.DefaultFormation]; !ok {
			res.Errors = append(res.Errors, &ReferenceError{
				App:       app.AppName,
				Formation: app.DefaultFormation,
				Reason:    "default formation not found",
			})
			continue
		}

		sched := &Schedule{}
		for i := range sched {
			sched[i] = app.DefaultFormation
		}

		if !res.Holiday {
			triggers := resolveTriggers(app, plans, formations, in.Weekday, res)
			for _, t := range triggers {
				for i := t.minute; i < types.MinutesPerDay; i++ {
					sched[i] = t.formation
				}
			}
		}

		res.Schedules[app.AppName] = sched
	}

	return res
}

// resolveTriggers returns the app's eligible plans ordered by trigger
// minute, keeping list order for plans that fire at the same minute.
func resolveTriggers(app *types.ManagedApp, plans map[string]*types.Plan, formations map[string]struct{}, day types.Weekday, res *Result) []trigger {
	var triggers []trigger
	for _, id := range app.Plans {
		plan, ok := plans[id]
		if !ok {
			res.Errors = append(res.Errors, &ReferenceError{App: app.AppName, Plan: id, Reason: "plan not found"})
			continue
		}
		if !plan.AppliesOn(day) {
			continue
		}
		if _, ok := formations[plan.Formation]; !ok {
			res.Errors = append(res.Errors, &ReferenceError{
				App:       app.AppName,
				Plan:      id,
				Formation: plan.Formation,
				Reason:    "formation not found",
			})
			continue
		}
		minute, err := plan.TriggerMinute()
		if err != nil {
			res.Errors = append(res.Errors, &ReferenceError{App: app.AppName, Plan: id, Reason: err.Error()})
			continue
		}
		triggers = append(triggers, trigger{minute: minute, formation: plan.Formation})
	}

	sort.SliceStable(triggers, func(i, j int) bool {
		return triggers[i].minute < triggers[j].minute
	})
	return triggers
}
