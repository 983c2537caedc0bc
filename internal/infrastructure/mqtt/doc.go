// Package mqtt provides MQTT client connectivity for the PDU bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with a bounded offline queue
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) on the bridge status topic
//   - Connection health monitoring
//
// # Architecture
//
// The bridge publishes per-device metric topics and listens for outlet
// commands over the same broker:
//
//	PDU pollers → MQTT Broker → Home Assistant / dashboards / scripts
//
// Messages published while the broker is unreachable go to a bounded FIFO
// queue (drop-oldest when full) and are flushed in order on reconnect, so a
// short broker outage does not punch holes in the retained metric topics.
//
// # Security Considerations
//
//   - TLS is recommended for anything beyond a trusted LAN (cfg.Broker.TLS)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Listen for outlet commands across all devices
//	err = client.Subscribe(client.Topics().AllOutletCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("command: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a retained metric
//	client.Publish(client.Topics().InputVoltage("pdu-01"), []byte("230.4"), 0, true)
package mqtt
