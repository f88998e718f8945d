// Package store persists marketplace entities in SQLite: users, addons and
// web apps, versions and files, uploads, authors, categories, payments,
// refunds, wizard progress, the activity log, and raw plus indexed stats.
//
// The schema is embedded and versioned; Open refuses a database created by a
// different schema version with sqlitedb.ErrSchemaMismatch. Lookups that match
// nothing return ErrNotFound, except the optional-relation getters
// (GetPremium, GetRefund, GetPreapproval, Upsell*) which return nil, nil.
package store
