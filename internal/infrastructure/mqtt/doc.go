// Package mqtt provides MQTT client connectivity for upnpd.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The bridge package publishes the evented state of local UPnP services
// and accepts action commands through this client:
//
//	local services ↔ bridge ↔ MQTT broker ↔ automation, dashboards
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command: %s = %s", topic, payload)
//	        return nil
//	    })
//
// Tests that need a broker at 127.0.0.1:1883 skip when none is reachable.
// The reconnection tests run only with -tags=integration.
package mqtt
