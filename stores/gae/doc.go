//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of
// authflow.Store for deployments on Google Cloud Platform.
//
// # Datastore Kinds
//
// Users are stored under the "User" kind, keyed by user id. Local usernames
// and provider accounts are indexed properties queried with FilterField.
// Datastore has no unique constraints, so concurrent signups for the same
// username are not prevented.
//
// # Namespacing
//
// Pass a namespace to isolate tenants:
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	store := gae.NewUserStore(client, "tenant-123")
package gae
