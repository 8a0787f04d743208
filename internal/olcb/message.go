package olcb

// Message is one OpenLCB message independent of its CAN framing. Outbound
// messages carry node ids; the write flow resolves aliases. Inbound messages
// carry the aliases seen on the wire, plus node ids where the alias map
// knows them.
type Message struct {
	MTI      MTI
	Src      NodeID
	SrcAlias Alias
	Dst      NodeID
	DstAlias Alias
	Payload  []byte
}
