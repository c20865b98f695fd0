// Package mqtt provides MQTT client connectivity for SmartLight Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The core subscribes to every lamp's status topic and publishes plain
// text commands back to each lamp's command topic. The broker decouples
// the core from the devices:
//
//	Lamps ↔ MQTT Broker ↔ SmartLight Core
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStatus(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.PublishCommand(mqtt.Topics{}.DeviceCommand("abc123"), "ON")
//
// TLS is required for production deployments; anonymous access is only
// for local development against the embedded broker.
package mqtt
