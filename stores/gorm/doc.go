//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-backed authflow.Store. It supports any
// database GORM supports; Open wires SQLite (pure Go) and PostgreSQL.
//
// # Database Schema
//
// AutoMigrate creates a single users table. Local and provider columns are
// nullable so a user can carry either or both credential sets. The local
// username column has a unique index: of two racing signups for the same
// username, the second save fails.
//
// # Usage
//
//	db, _ := gormstore.Open("postgres", dsn)
//	gormstore.AutoMigrate(db)
//	store := gormstore.NewUserStore(db)
package gorm
