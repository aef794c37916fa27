// Package application wires the envsmith engine to the command line. Each
// command handler loads files, renders its result to the configured writer
// and returns the process exit code, keeping the main package focused on
// flag parsing and signal handling.
package application
