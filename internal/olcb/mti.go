package olcb

// MTI is the 16-bit message type indicator. Bit 3 marks a message that
// carries a destination address; values with any of the top four bits set
// belong to the datagram/stream classes, which travel in their own CAN
// frame types and never through the MTI write flow.
type MTI uint16

const (
	MTIInitializationComplete  MTI = 0x0100
	MTIVerifiedNodeID          MTI = 0x0170
	MTIVerifyNodeIDGlobal      MTI = 0x0490
	MTIEventReport             MTI = 0x05B4
	MTIProtocolSupportReply    MTI = 0x0668
	MTIProtocolSupportInquiry  MTI = 0x0828
	MTIEventsIdentifyGlobal    MTI = 0x0970
	MTIOptionalInteractionFail MTI = 0x0068
	MTIDatagram                MTI = 0x1C48
)

// Addressed reports whether the message carries a destination id.
func (m MTI) Addressed() bool { return m&0x0008 != 0 }

// DatagramClass reports whether the MTI belongs to the datagram/stream
// classes excluded from the MTI write flow.
func (m MTI) DatagramClass() bool { return m&0xF000 != 0 }

// NodeID is a 48-bit globally unique node identifier.
type NodeID uint64

// Alias is the 12-bit CAN alias standing in for a NodeID on the wire.
type Alias uint16

// CAN identifier layout for MTI-carrying frames: reserved bit 28 set,
// frame type "global/addressed MTI" in bits 24-27, the 12-bit CAN MTI in
// bits 12-23, source alias in bits 0-11.
const (
	messageFrameBits uint32 = 0x19000000
	frameTypeMask    uint32 = 0x1F000000
)

// MessageFrameID assembles the 29-bit identifier for an MTI frame.
func MessageFrameID(m MTI, src Alias) uint32 {
	return messageFrameBits | uint32(m&0xFFF)<<12 | uint32(src)&0xFFF
}

// IsMessageFrame reports whether the identifier carries an MTI frame.
func IsMessageFrame(id uint32) bool {
	return id&frameTypeMask == messageFrameBits
}

// FrameMTI extracts the MTI from an MTI frame identifier.
func FrameMTI(id uint32) MTI { return MTI(id>>12) & 0xFFF }

// FrameSource extracts the source alias from a frame identifier.
func FrameSource(id uint32) Alias { return Alias(id & 0xFFF) }

// Continuation markers carried in the top nibble of the first destination
// byte of an addressed frame.
const (
	fragOnly   byte = 0x0
	fragFirst  byte = 0x1
	fragLast   byte = 0x2
	fragMiddle byte = 0x3
)

// destBytes renders the destination alias with the continuation marker.
func destBytes(dst Alias, flag byte) (byte, byte) {
	return flag<<4 | byte(dst>>8)&0xF, byte(dst)
}
