// Package connector wraps the cloud transport the bridge talks through.
//
// Connector is the opaque handle the synchronisation engine consumes:
// connect, disconnect, upload, the bind-code calls, sub-device registration
// and the local handshake. Asynchronous callbacks (link state, inbound
// commands, local pairing events) arrive on a bounded channel of typed
// messages.
//
// MQTTConnector implements Connector against a connector daemon reached
// over MQTT with id-correlated request/response messages.
package connector
