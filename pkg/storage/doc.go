/*
Package storage implements the plan store on top of BoltDB (bbolt).

The plan store holds four document collections, each a bucket of JSON
documents nested under a namespace bucket named after the configured
database (DATABASE_NAME):

	<namespace>/
	  plans            key: plan id         value: types.Plan
	  formations       key: formation id    value: types.Formation
	  app_plans        key: app name        value: types.ManagedApp
	  market_holidays  key: year            value: types.HolidayCalendar

The file path comes from DATABASE_URL. Several namespaces may live in one
file, which is how staging and production rosters share a volume.

# Access Pattern

The autoscaler only reads the store, once a day. The manager opens a
read-only handle for each reload and closes it when the snapshot has been
compiled, so "autoscaler import" can write to the same file between reloads
(bbolt takes an exclusive flock for writers).

	store, err := storage.NewBoltStore(path, "autoscaler", storage.Options{ReadOnly: true})
	if err != nil {
		return err
	}
	defer store.Close()

	apps, err := store.ListEnabledApps()

# Import

ParseDocument decodes the YAML layout used by "autoscaler import" and
rejects malformed documents (bad clock times, unknown weekday tokens,
missing keys). Import upserts every document; app_spec mappings are stored
as raw JSON for the lifecycle platform adapter.
*/
package storage
