// Package flowmesh provides a client for a subject-based publish/subscribe
// messaging system with an optional durable stream layer ("JetStream").
//
// It maintains a long-lived, auto-reconnecting connection to a cluster of
// brokers over a text-over-TCP (optionally TLS) wire protocol, and exposes a
// pull-based JetStream consumer that retrieves stored messages in controlled
// batches with flow control and heartbeat supervision.
//
// # Quick Start
//
//	conn, err := flowmesh.Connect(context.Background(), nil,
//	    flowmesh.WithServers("mesh://127.0.0.1:4222"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	sub, err := conn.Subscribe("orders.*", func(msg *flowmesh.Msg) {
//	    log.Printf("received %s: %s", msg.Subject, msg.Data)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sub.Unsubscribe()
//
//	if err := conn.Publish(context.Background(), "orders.created", []byte("payload")); err != nil {
//	    log.Fatal(err)
//	}
//
// # Architecture
//
// The connection progresses through a small state machine:
//
//	Closed → Connecting → Handshaking → Open → Reconnecting → Connecting → ...
//
// A single reader goroutine demultiplexes inbound frames to the subscription
// registry and the inbox multiplexer; a single writer goroutine drains a
// bounded ring of outbound frames so publishers never race on the socket.
// Both survive transport swaps across reconnects.
//
// # JetStream
//
// The jetstream subpackage layers a typed JSON admin API and a stateful
// pull-consumer engine on top of the connection core. See that package's
// documentation for consuming durable streams in bounded batches.
package flowmesh
