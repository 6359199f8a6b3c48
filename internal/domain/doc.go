// Package domain models weather-station telemetry from the upstream IoT hub.
//
// # Upstream API
//
// Each station is addressed by a small integer ID and queried with
// GET <base>/<id>. Responses use a localized envelope:
//
//	{ "code": 200, "arrResponse": { "Temperatura": "28.6 °C", ... } }
//
// Sensor values arrive as loosely formatted strings with embedded units and,
// depending on the station firmware, a decimal comma ("28,6 °C"). Some
// deployments return the sensor fields flat at the top level instead of
// nested under arrResponse; [StationPayload] resolves both shapes.
//
// # Field names
//
// Keys are Portuguese and vary by firmware revision (accented vs. plain
// spellings, e.g. "Pressão Atmosférica" vs. "Pressao"). The accepted
// spellings per sensor live in the alias tables in map.go and are checked
// in order; the accented form is always the primary key.
//
// # Timestamps
//
// The "Última Leitura" field carries the station's wall clock as
// "DD/MM/YYYY HH:MM:SS" in a fixed UTC-3 offset (no DST). ISO-8601 values
// are passed through. A payload that omits the field entirely is still a
// live reading and gets the current time; a field that is present but
// unparseable yields no timestamp at all, so stale stations are never
// reported as fresh.
//
// # Missing values
//
// A sensor string with no numeric substring maps to nil, not zero. Nil means
// "sensor absent"; zero is a real reading (0 mm of rain is data).
package domain
