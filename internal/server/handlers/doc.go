// Package handlers contains the HTTP handlers of the wodesk JSON API.
//
// This package provides handlers for:
//   - Work order listing, selection, search and sorting
//   - State and work log changes
//   - Clear, soft clear and refresh from the remote system
//   - Per work order journal history
//   - Health
//
// Handlers never touch the view directly. Reads go through the view's
// read lock and every mutation goes through the lifecycle controller. Errors
// are classified with foundation/errors and written by its HTTP adapter.
package handlers
