// Package mqtt wraps the paho MQTT v5 client with reconnects, subscriptions
// restored on every session and a plain topic/payload handler.
package mqtt
