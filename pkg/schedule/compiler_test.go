package schedule

import (
	"testing"

	"github.com/cuemby/autoscaler/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormations() []*types.Formation {
	return []*types.Formation{
		{ID: "off", Type: "web", Size: "standard-1X", Quantity: 0},
		{ID: "small", Type: "web", Size: "standard-1X", Quantity: 1},
		{ID: "large", Type: "web", Size: "performance-m", Quantity: 4},
	}
}

func allDays() []types.Weekday {
	return []types.Weekday{types.Sunday, types.Monday, types.Tuesday, types.Wednesday, types.Thursday, types.Friday, types.Saturday}
}

func assertRange(t *testing.T, s *Schedule, from, to int, want string) {
	t.Helper()
	for i := from; i <= to; i++ {
		if s[i] != want {
			t.Fatalf("minute %d = %q, want %q", i, s[i], want)
		}
	}
}

func TestCompileSinglePlanEveryWeekday(t *testing.T) {
	holidays := &types.HolidayCalendar{Year: 2026, Holidays: []string{"2026-01-26"}}

	for _, day := range allDays() {
		t.Run(string(day), func(t *testing.T) {
			res := Compile(Input{
				Plans:      []*types.Plan{{ID: "p1", Days: allDays(), Time: "09:15", Formation: "small"}},
				Formations: testFormations(),
				Apps:       []*types.ManagedApp{{AppName: "a", Plans: []string{"p1"}, DefaultFormation: "off"}},
				Holidays:   holidays,
				Weekday:    day,
				Date:       "2026-03-02",
			})

			require.Empty(t, res.Errors)
			s := res.Schedules["a"]
			require.NotNil(t, s)
			assertRange(t, s, 0, 554, "off")
			assertRange(t, s, 555, 1439, "small")
		})
	}
}

func TestCompileHolidayUsesDefaultAllDay(t *testing.T) {
	res := Compile(Input{
		Plans:      []*types.Plan{{ID: "p1", Days: allDays(), Time: "00:00", Formation: "small"}},
		Formations: testFormations(),
		Apps: []*types.ManagedApp{
			{AppName: "a", Plans: []string{"p1"}, DefaultFormation: "off"},
			{AppName: "b", Plans: []string{"p1"}, DefaultFormation: "large"},
		},
		Holidays: &types.HolidayCalendar{Year: 2026, Holidays: []string{"2026-01-26"}},
		Weekday:  types.Monday,
		Date:     "2026-01-26",
	})

	assert.True(t, res.Holiday)
	assertRange(t, res.Schedules["a"], 0, 1439, "off")
	assertRange(t, res.Schedules["b"], 0, 1439, "large")
}

func TestCompileIsDeterministic(t *testing.T) {
	in := Input{
		Plans: []*types.Plan{
			{ID: "1", Days: []types.Weekday{types.Monday}, Time: "08:00", Formation: "small"},
			{ID: "2", Days: []types.Weekday{types.Monday}, Time: "12:30", Formation: "large"},
			{ID: "3", Days: []types.Weekday{types.Monday}, Time: "17:00", Formation: "off"},
		},
		Formations: testFormations(),
		Apps:       []*types.ManagedApp{{AppName: "a", Plans: []string{"3", "1", "2"}, DefaultFormation: "off"}},
		Weekday:    types.Monday,
		Date:       "2026-03-02",
	}

	first := Compile(in)
	second := Compile(in)
	assert.Equal(t, *first.Schedules["a"], *second.Schedules["a"])
}

func TestCompileEndToEndMonday(t *testing.T) {
	res := Compile(Input{
		Plans: []*types.Plan{
			{ID: "1", Days: []types.Weekday{types.Monday}, Time: "08:00", Formation: "small"},
			{ID: "2", Days: []types.Weekday{types.Monday}, Time: "17:00", Formation: "off"},
		},
		Formations: testFormations(),
		Apps:       []*types.ManagedApp{{AppName: "a", Plans: []string{"1", "2"}, DefaultFormation: "off"}},
		Holidays:   &types.HolidayCalendar{Year: 2026},
		Weekday:    types.Monday,
		Date:       "2026-03-02",
	})

	s := res.Schedules["a"]
	assert.Equal(t, "small", s.At(500))
	assert.Equal(t, "off", s.At(1020))
	assert.Equal(t, "off", s.At(100))
	assert.Equal(t, []Transition{
		{Minute: 0, Formation: "off"},
		{Minute: 480, Formation: "small"},
		{Minute: 1020, Formation: "off"},
	}, s.Transitions())
}

func TestCompileSortsPlansByTriggerTime(t *testing.T) {
	// Declared out of order: the 17:00 plan must still win after 17:00
	res := Compile(Input{
		Plans: []*types.Plan{
			{ID: "evening", Days: []types.Weekday{types.Monday}, Time: "17:00", Formation: "off"},
			{ID: "morning", Days: []types.Weekday{types.Monday}, Time: "08:00", Formation: "small"},
		},
		Formations: testFormations(),
		Apps:       []*types.ManagedApp{{AppName: "a", Plans: []string{"evening", "morning"}, DefaultFormation: "large"}},
		Weekday:    types.Monday,
		Date:       "2026-03-02",
	})

	s := res.Schedules["a"]
	assertRange(t, s, 0, 479, "large")
	assertRange(t, s, 480, 1019, "small")
	assertRange(t, s, 1020, 1439, "off")
}

func TestCompileTiesKeepListOrder(t *testing.T) {
	res := Compile(Input{
		Plans: []*types.Plan{
			{ID: "x", Days: []types.Weekday{types.Friday}, Time: "10:00", Formation: "small"},
			{ID: "y", Days: []types.Weekday{types.Friday}, Time: "10:00", Formation: "large"},
		},
		Formations: testFormations(),
		Apps: []*types.ManagedApp{
			{AppName: "xy", Plans: []string{"x", "y"}, DefaultFormation: "off"},
			{AppName: "yx", Plans: []string{"y", "x"}, DefaultFormation: "off"},
		},
		Weekday: types.Friday,
		Date:    "2026-03-06",
	})

	assert.Equal(t, "large", res.Schedules["xy"].At(600))
	assert.Equal(t, "small", res.Schedules["yx"].At(600))
}

func TestCompileMidnightPlanCoversWholeDay(t *testing.T) {
	res := Compile(Input{
		Plans:      []*types.Plan{{ID: "p", Days: []types.Weekday{types.Sunday}, Time: "00:00", Formation: "large"}},
		Formations: testFormations(),
		Apps:       []*types.ManagedApp{{AppName: "a", Plans: []string{"p"}, DefaultFormation: "off"}},
		Weekday:    types.Sunday,
		Date:       "2026-03-01",
	})

	assertRange(t, res.Schedules["a"], 0, 1439, "large")
}

func TestCompileIneligibleWeekdayKeepsDefault(t *testing.T) {
	res := Compile(Input{
		Plans:      []*types.Plan{{ID: "p", Days: []types.Weekday{types.Monday}, Time: "08:00", Formation: "small"}},
		Formations: testFormations(),
		Apps:       []*types.ManagedApp{{AppName: "a", Plans: []string{"p"}, DefaultFormation: "off"}},
		Weekday:    types.Tuesday,
		Date:       "2026-03-03",
	})

	assert.Empty(t, res.Errors)
	assertRange(t, res.Schedules["a"], 0, 1439, "off")
}

func TestCompileSkipsDanglingReferences(t *testing.T) {
	res := Compile(Input{
		Plans: []*types.Plan{
			{ID: "good", Days: []types.Weekday{types.Monday}, Time: "09:00", Formation: "small"},
			{ID: "ghost-formation", Days: []types.Weekday{types.Monday}, Time: "10:00", Formation: "huge"},
			{ID: "bad-time", Days: []types.Weekday{types.Monday}, Time: "nine", Formation: "large"},
		},
		Formations: testFormations(),
		Apps: []*types.ManagedApp{
			{AppName: "a", Plans: []string{"good", "missing", "ghost-formation", "bad-time"}, DefaultFormation: "off"},
			{AppName: "broken", Plans: []string{"good"}, DefaultFormation: "nope"},
		},
		Weekday: types.Monday,
		Date:    "2026-03-02",
	})

	require.Len(t, res.Errors, 4)
	for _, err := range res.Errors {
		var ref *ReferenceError
		assert.ErrorAs(t, err, &ref)
	}

	s := res.Schedules["a"]
	require.NotNil(t, s)
	assertRange(t, s, 0, 539, "off")
	assertRange(t, s, 540, 1439, "small")

	_, ok := res.Schedules["broken"]
	assert.False(t, ok, "app with unresolvable default is excluded")
}

func TestCompileNoPlansKeepsDefault(t *testing.T) {
	res := Compile(Input{
		Formations: testFormations(),
		Apps:       []*types.ManagedApp{{AppName: "a", DefaultFormation: "small"}},
		Weekday:    types.Monday,
		Date:       "2026-03-02",
	})

	assertRange(t, res.Schedules["a"], 0, 1439, "small")
	assert.Len(t, res.Schedules["a"].Transitions(), 1)
}

func TestScheduleAtClamps(t *testing.T) {
	s := &Schedule{}
	s[0] = "first"
	s[types.MinutesPerDay-1] = "last"

	assert.Equal(t, "first", s.At(-5))
	assert.Equal(t, "last", s.At(5000))
}

func TestReferenceErrorMessages(t *testing.T) {
	assert.Equal(t, "app a: plan p: plan not found", (&ReferenceError{App: "a", Plan: "p", Reason: "plan not found"}).Error())
	assert.Equal(t, "app a: formation f: default formation not found", (&ReferenceError{App: "a", Formation: "f", Reason: "default formation not found"}).Error())
	assert.Equal(t, "app a: plan p: formation f: formation not found", (&ReferenceError{App: "a", Plan: "p", Formation: "f", Reason: "formation not found"}).Error())
	assert.Equal(t, "09:15", Transition{Minute: 555}.Clock())
}
