package storage

import (
	"errors"

	"github.com/cuemby/autoscaler/pkg/types"
)

// ErrNotFound is returned when a keyed document does not exist
var ErrNotFound = errors.New("not found")

// Store defines the interface for plan store access
type Store interface {
	// Plans
	PutPlan(plan *types.Plan) error
	ListPlans() ([]*types.Plan, error)
	DeletePlan(id string) error

	// Formations
	PutFormation(formation *types.Formation) error
	ListFormations() ([]*types.Formation, error)
	DeleteFormation(id string) error

	// App plans
	PutApp(app *types.ManagedApp) error
	GetApp(name string) (*types.ManagedApp, error)
	ListApps() ([]*types.ManagedApp, error)
	ListEnabledApps() ([]*types.ManagedApp, error)
	DeleteApp(name string) error

	// Market holidays
	PutHolidays(cal *types.HolidayCalendar) error
	GetHolidays(year int) (*types.HolidayCalendar, error)

	// Utility
	Close() error
}

// Opener opens a fresh store handle. The manager opens one per reload and
// closes it afterwards so that no handle is held between reloads.
type Opener func() (Store, error)
