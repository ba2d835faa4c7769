// Package config loads the UltimateLogger configuration file and turns it into the pieces the
// engine is built from: an opened storage backend, engine options, a console logger and the
// optional OpenTelemetry providers.
//
// The file is YAML with kebab-case keys. Every key is optional; missing keys keep the values
// of Default().
package config
