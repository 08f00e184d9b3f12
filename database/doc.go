// Package database provides connection management, dialect selection, query
// logging hooks, SQL error classification, model registration and health
// checks built on top of Bun.
package database
