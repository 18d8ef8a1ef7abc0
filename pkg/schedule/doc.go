// Package schedule compiles weekly plans into a per-minute formation
// schedule for one day.
//
// Compile is pure: it reads plans, formations, the enabled roster and the
// holiday calendar and returns, per app, a 1440-entry array of formation
// ids. Each app starts the day on its default formation; every eligible plan
// overwrites the array from its trigger minute to the end of the day, in
// ascending trigger order. On a holiday no plan is eligible.
package schedule
