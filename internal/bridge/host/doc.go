// Package host defines the bridge's view of the local smart-home platform and
// provides an MQTT adapter for it.
//
// The Host interface covers what the synchronisation engine consumes:
// registry lookups, entity states, state-change and registry listeners,
// service invocation and integration reload. MQTTHost implements it by
// mirroring the platform's retained MQTT export into memory.
package host
