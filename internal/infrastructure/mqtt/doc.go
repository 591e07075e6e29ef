// Package mqtt provides MQTT client connectivity for the vhome bridge.
//
// Client owns one broker session. It replays its subscriptions after paho
// reconnects and keeps a retained status on vhome/bridge/status, backed by
// a will message for crashes. Topics builds every topic the bridge uses,
// including vhome/bridge/event/<type> where coordinator events are
// mirrored.
//
// # Architecture
//
// The broker is the bridge's only transport. Two peers sit on it: the cloud
// connector daemon (which owns the vendor wire protocol) and the host
// platform (which owns the entity registry, state store and service bus).
//
//	host platform ↔ MQTT broker ↔ vhome bridge ↔ MQTT broker ↔ cloud connector
//
// # Security Considerations
//
//   - TLS should be enabled for any broker not bound to loopback
//   - Credentials are validated against the broker ACL
//   - Payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{CloudPrefix: cfg.Connector.TopicPrefix}
//	err = client.Subscribe(topics.AllCloudEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.PublishJSON(topics.CloudRequest("upload"), req, false)
package mqtt
