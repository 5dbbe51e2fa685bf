// Package mqtt provides MQTT client connectivity for RoomWatch.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// All topics live under a configurable base (default "iot_room"):
//
//	{base}/devices/{device_id}/commands   server → device
//	{base}/devices/{device_id}/telemetry  device → server (via the bridge)
//	{base}/system/status                  retained online/offline status
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.BaseTopic)
//	err = client.Publish(topics.DeviceCommand("lab-fan-01"), payload, 1, false)
package mqtt
