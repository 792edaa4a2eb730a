// Package cli implements the garagectl command-line interface.
//
// garagectl runs the same ingestion path as the service for one-off checks:
// fetching a live snapshot, parsing a saved status page offline to spot
// markup drift, and printing the compiled-in garage catalog.
package cli
