// Package jetstream implements a typed client for the durable stream layer
// built on top of a flowmesh.Conn: a JSON admin API over the
// "$JS.API." subject namespace, stream and consumer facades, and a
// pull-consumer engine with credit accounting, refill, and heartbeat
// supervision.
package jetstream
