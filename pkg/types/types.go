package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the length of a compiled schedule
const MinutesPerDay = 24 * 60

// Weekday is a three-letter day token as stored in plan documents
type Weekday string

const (
	Sunday    Weekday = "SUN"
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
)

var weekdays = [7]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// WeekdayOf returns the token for a time.Weekday
func WeekdayOf(d time.Weekday) Weekday {
	return weekdays[d]
}

// Valid reports whether w is one of the seven known tokens
func (w Weekday) Valid() bool {
	for _, d := range weekdays {
		if d == w {
			return true
		}
	}
	return false
}

// Plan says "from Time onwards, on these Days, use Formation"
type Plan struct {
	ID        string    `json:"id" yaml:"id"`
	Days      []Weekday `json:"days" yaml:"days"`
	Time      string    `json:"time" yaml:"time"` // "HH:MM"
	Formation string    `json:"formation" yaml:"formation"`
}

// AppliesOn reports whether the plan lists the given weekday
func (p *Plan) AppliesOn(day Weekday) bool {
	for _, d := range p.Days {
		if d == day {
			return true
		}
	}
	return false
}

// TriggerMinute parses Time into a minute-of-day index
func (p *Plan) TriggerMinute() (int, error) {
	return ParseClock(p.Time)
}

// ParseClock converts "HH:MM" into minutes since midnight
func ParseClock(clock string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q: expected HH:MM", clock)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock time %q", clock)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock time %q", clock)
	}
	return hour*60 + minute, nil
}

// Formation is a named target capacity for an application
type Formation struct {
	ID       string `json:"id" yaml:"id"`
	Type     string `json:"type" yaml:"type"`
	Size     string `json:"size" yaml:"size"`
	Quantity int    `json:"quantity" yaml:"quantity"`
}

// State returns the formation as a comparable state triple
func (f *Formation) State() FormationState {
	return FormationState{Type: f.Type, Size: f.Size, Quantity: f.Quantity}
}

// FormationState is the capacity observed on (or written to) a live application
type FormationState struct {
	Type     string `json:"type"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// Equal compares all three fields
func (s FormationState) Equal(other FormationState) bool {
	return s.Type == other.Type && s.Size == other.Size && s.Quantity == other.Quantity
}

func (s FormationState) String() string {
	return fmt.Sprintf("type: %s, size: %s, quantity: %d", s.Type, s.Size, s.Quantity)
}

// PlatformName identifies a provider adapter
type PlatformName string

const (
	PlatformHeroku       PlatformName = "heroku"
	PlatformDigitalOcean PlatformName = "digitalocean"
)

// PlatformDescriptor binds an app to a provider and its credentials
type PlatformDescriptor struct {
	Name  PlatformName `json:"name" yaml:"name"`
	Token string       `json:"token" yaml:"token"`
}

// String renders the descriptor for logs without the credential
func (d PlatformDescriptor) String() string {
	if d.Name == "" {
		return "<none>"
	}
	return string(d.Name)
}

// RestartConfig configures the restart watchdog for one app
type RestartConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	AppDomain string `json:"app_domain" yaml:"app_domain"`
	APIKey    string `json:"api_key" yaml:"api_key"`
}

// ManagedApp is one application under schedule control (an "app plan" document)
type ManagedApp struct {
	AppName          string             `json:"app_name" yaml:"app_name"`
	Enabled          bool               `json:"enabled" yaml:"enabled"`
	Platform         PlatformDescriptor `json:"platform" yaml:"platform"`
	Plans            []string           `json:"plans" yaml:"plans"`
	DefaultFormation string             `json:"default_formation" yaml:"default_formation"`
	Restart          *RestartConfig     `json:"restart,omitempty" yaml:"restart,omitempty"`

	// AppSpec is the provider spec used to create the app on lifecycle platforms
	AppSpec json.RawMessage `json:"app_spec,omitempty" yaml:"-"`
}

// RestartEnabled reports whether the watchdog should probe this app
func (a *ManagedApp) RestartEnabled() bool {
	return a.Restart != nil && a.Restart.Enabled && a.Restart.AppDomain != ""
}

// HolidayCalendar lists the non-trading dates of one year
type HolidayCalendar struct {
	Year     int      `json:"year" yaml:"year"`
	Holidays []string `json:"holidays" yaml:"holidays"` // "YYYY-MM-DD"
}

// IsHoliday reports whether date (YYYY-MM-DD) is listed
func (c *HolidayCalendar) IsHoliday(date string) bool {
	if c == nil {
		return false
	}
	for _, h := range c.Holidays {
		if h == date {
			return true
		}
	}
	return false
}

// DateString formats t as the ISO date used by holiday calendars
func DateString(t time.Time) string {
	return t.Format(time.DateOnly)
}

// MinuteOfDay returns the schedule index for t in t's location
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
