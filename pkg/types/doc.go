/*
Package types defines the data model shared by every autoscaler package.

The model mirrors the documents kept in the plan store: plans, formations,
managed applications ("app plans") and per-year market holiday calendars.
Types carry both json and yaml tags so the same structs are used for the
bolt-encoded documents and for the YAML files accepted by "autoscaler import".

# Core Types

Scheduling:
  - Plan: weekday set + "HH:MM" trigger + target formation id
  - Weekday: SUN..SAT tokens as they appear in documents
  - HolidayCalendar: ISO dates on which no plan fires

Capacity:
  - Formation: named {type, size, quantity} target
  - FormationState: the triple read back from a live application

Applications:
  - ManagedApp: plan subscriptions, default formation, platform binding and
    optional restart watchdog configuration
  - PlatformDescriptor: provider name and credential
  - RestartConfig: restart probe domain and API key

# Usage

Checking whether a plan fires today:

	now := time.Now().In(loc)
	if plan.AppliesOn(types.WeekdayOf(now.Weekday())) && !cal.IsHoliday(types.DateString(now)) {
		minute, err := plan.TriggerMinute()
		...
	}

Comparing live and planned capacity:

	if !live.Equal(formation.State()) {
		// write the full triple
	}

A compiled schedule always has MinutesPerDay entries, indexed by MinuteOfDay.
*/
package types
