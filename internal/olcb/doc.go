// Package olcb carries OpenLCB/NMRAnet messages over a CAN frame hub: MTI
// classification, node id to alias mapping, the outbound write/fragmentation
// flow, and the inbound reassembly path feeding the message dispatcher.
package olcb
