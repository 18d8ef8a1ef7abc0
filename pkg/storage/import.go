package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cuemby/autoscaler/pkg/types"
	"gopkg.in/yaml.v3"
)

// Document is the YAML layout accepted by "autoscaler import". Each section
// maps onto one bucket of the plan store.
type Document struct {
	Formations     []*types.Formation       `yaml:"formations"`
	Plans          []*types.Plan            `yaml:"plans"`
	AppPlans       []*appPlanDocument       `yaml:"app_plans"`
	MarketHolidays []*types.HolidayCalendar `yaml:"market_holidays"`
}

// appPlanDocument carries app_spec as a free-form mapping; it is stored as JSON
type appPlanDocument struct {
	types.ManagedApp `yaml:",inline"`
	AppSpec          map[string]any `yaml:"app_spec,omitempty"`
}

// ImportSummary counts the documents written
type ImportSummary struct {
	Formations int
	Plans      int
	AppPlans   int
	Holidays   int
}

// ParseDocument decodes and validates a YAML document
func ParseDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate rejects documents the store should never hold. Cross references
// (plan -> formation, app -> plan) are not checked here: the compiler
// tolerates dangling ids and a partial import may be completed later.
func (d *Document) Validate() error {
	var errs []error
	for i, f := range d.Formations {
		if f.ID == "" {
			errs = append(errs, fmt.Errorf("formations[%d]: id is required", i))
		}
		if f.Quantity < 0 {
			errs = append(errs, fmt.Errorf("formations[%d]: quantity must not be negative", i))
		}
	}
	for i, p := range d.Plans {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("plans[%d]: id is required", i))
		}
		if _, err := p.TriggerMinute(); err != nil {
			errs = append(errs, fmt.Errorf("plans[%d]: %w", i, err))
		}
		for _, day := range p.Days {
			if !day.Valid() {
				errs = append(errs, fmt.Errorf("plans[%d]: unknown day %q", i, day))
			}
		}
	}
	for i, a := range d.AppPlans {
		if a.AppName == "" {
			errs = append(errs, fmt.Errorf("app_plans[%d]: app_name is required", i))
		}
		if a.DefaultFormation == "" {
			errs = append(errs, fmt.Errorf("app_plans[%d]: default_formation is required", i))
		}
	}
	for i, h := range d.MarketHolidays {
		if h.Year <= 0 {
			errs = append(errs, fmt.Errorf("market_holidays[%d]: year is required", i))
		}
	}
	return errors.Join(errs...)
}

// Import writes every document in doc into the store (upsert)
func Import(store Store, doc *Document) (ImportSummary, error) {
	var sum ImportSummary

	for _, f := range doc.Formations {
		if err := store.PutFormation(f); err != nil {
			return sum, fmt.Errorf("formation %s: %w", f.ID, err)
		}
		sum.Formations++
	}
	for _, p := range doc.Plans {
		if err := store.PutPlan(p); err != nil {
			return sum, fmt.Errorf("plan %s: %w", p.ID, err)
		}
		sum.Plans++
	}
	for _, a := range doc.AppPlans {
		app := a.ManagedApp
		if a.AppSpec != nil {
			raw, err := json.Marshal(a.AppSpec)
			if err != nil {
				return sum, fmt.Errorf("app %s: encode app_spec: %w", app.AppName, err)
			}
			app.AppSpec = raw
		}
		if err := store.PutApp(&app); err != nil {
			return sum, fmt.Errorf("app %s: %w", app.AppName, err)
		}
		sum.AppPlans++
	}
	for _, h := range doc.MarketHolidays {
		if err := store.PutHolidays(h); err != nil {
			return sum, fmt.Errorf("holidays %d: %w", h.Year, err)
		}
		sum.Holidays++
	}

	return sum, nil
}

// Prune deletes formations, plans and app plans that doc does not name, so
// the store mirrors the document. Holiday calendars are kept.
func Prune(store Store, doc *Document) (ImportSummary, error) {
	var sum ImportSummary

	keepApps := make(map[string]bool, len(doc.AppPlans))
	for _, a := range doc.AppPlans {
		keepApps[a.AppName] = true
	}
	apps, err := store.ListApps()
	if err != nil {
		return sum, err
	}
	for _, app := range apps {
		if keepApps[app.AppName] {
			continue
		}
		if err := store.DeleteApp(app.AppName); err != nil {
			return sum, fmt.Errorf("app %s: %w", app.AppName, err)
		}
		sum.AppPlans++
	}

	keepPlans := make(map[string]bool, len(doc.Plans))
	for _, p := range doc.Plans {
		keepPlans[p.ID] = true
	}
	plans, err := store.ListPlans()
	if err != nil {
		return sum, err
	}
	for _, p := range plans {
		if keepPlans[p.ID] {
			continue
		}
		if err := store.DeletePlan(p.ID); err != nil {
			return sum, fmt.Errorf("plan %s: %w", p.ID, err)
		}
		sum.Plans++
	}

	keepFormations := make(map[string]bool, len(doc.Formations))
	for _, f := range doc.Formations {
		keepFormations[f.ID] = true
	}
	formations, err := store.ListFormations()
	if err != nil {
		return sum, err
	}
	for _, f := range formations {
		if keepFormations[f.ID] {
			continue
		}
		if err := store.DeleteFormation(f.ID); err != nil {
			return sum, fmt.Errorf("formation %s: %w", f.ID, err)
		}
		sum.Formations++
	}

	return sum, nil
}
