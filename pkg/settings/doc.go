// Package settings implements the settings registry: one list/create surface
// over the five configuration kinds (role, permission, workflow, form,
// language), each backed by its own collection.
//
// Every call validates the kind, then requires the admin role, and only then
// touches the store. Workflow and form rows carry a config document that must
// be a JSON object; its contents are stored as given. Rows are never updated
// or deleted through the registry.
//
//	reg := settings.NewRegistry(store, logger, settings.WithMetrics(metrics))
//	rows, err := reg.List(ctx, rbac.RoleAdmin, "language")
//	created, err := reg.Create(ctx, rbac.RoleAdmin, "role", map[string]any{
//		"name": "Installer", "description": "Field installer",
//	})
//
// Handlers exposes the registry as GET and POST /api/settings. Seed loads
// default roles and languages into empty collections.
package settings
