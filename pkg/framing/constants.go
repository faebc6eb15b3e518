// Package framing implements the layered RTP + RTP-extension + FNE-extension
// envelope that carries every DMR/P25/NXDN payload on the wire, plus the
// opcode table used to route a decoded frame to a handler.
package framing

// Header sizes (bytes).
const (
	RtpHeaderSize    = 12
	RtpExtHeaderSize = 4
	FneExtHeaderSize = 12
	EnvelopeSize     = RtpHeaderSize + RtpExtHeaderSize + FneExtHeaderSize
)

// RtpVersion is the only RTP version this envelope accepts.
const RtpVersion = 2

// DvmPayloadType is the base RTP payload type used for FNE traffic; a frame
// may also carry DvmPayloadType+1.
const DvmPayloadType = 86

// DvmExtensionSentinel is the required RTP-extension payload-type value.
const DvmExtensionSentinel = 0xFE

// DvmExtensionLength32 is the required RTP-extension length, in 32-bit units.
const DvmExtensionLength32 = 4

// RtpGenericClockRate is the nominal RTP clock rate the 133 Hz timestamp
// step is derived from.
const RtpGenericClockRate = 8000

// RtpTimestampStep is the fixed per-packet timestamp increment described in
// §4.8 / §9 note 4: RtpGenericClockRate/133, truncated.
const RtpTimestampStep = RtpGenericClockRate / 133

// Opcode functions (byte 0 of the FNE extension header).
const (
	FuncProtocol   = 0x00
	FuncMaster     = 0x01
	FuncRptl       = 0x60
	FuncRptk       = 0x61
	FuncRptc       = 0x62
	FuncRptClosing = 0x70
	FuncMstClosing = 0x71
	FuncPing       = 0x74
	FuncPong       = 0x75
	FuncGrant      = 0x7A
	FuncInCallCtrl = 0x7B
	FuncKeyReq     = 0x7C
	FuncKeyRsp     = 0x7D
	FuncAck        = 0x7E
	FuncNak        = 0x7F
	FuncTransfer   = 0x90
	FuncAnnounce   = 0x91
)

// Sub-functions for FuncProtocol.
const (
	SubProtocolDMR    = 0x00
	SubProtocolP25    = 0x01
	SubProtocolNXDN   = 0x02
	SubProtocolAnalog = 0x03
)

// Sub-functions for FuncMaster.
const (
	SubMasterWhitelist     = 0x00
	SubMasterBlacklist     = 0x01
	SubMasterActiveTGIDs   = 0x02
	SubMasterDeactiveTGIDs = 0x03
	SubMasterHAParams      = 0xA3
)

// SubAny is the fixed 0xFF sub-function used by opcodes that carry no
// further disambiguation.
const SubAny = 0xFF

// Sub-functions for FuncTransfer.
const (
	SubTransferActivity   = 0x01
	SubTransferDiagnostic = 0x02
	SubTransferStatus     = 0x03
)

// Sub-functions for FuncAnnounce.
const (
	SubAnnounceAffiliation    = 0x00
	SubAnnounceUnitReg        = 0x01
	SubAnnounceUnitDereg      = 0x02
	SubAnnounceAffilRemoval   = 0x03
	SubAnnounceFullAffilTable = 0x90
)

// Protocol-frame preamble tags (offset 0..3 of the payload).
const (
	PacketTypeDMRD = "DMRD"
	PacketTypeP25D = "P25D"
	PacketTypeNXDD = "NXDD"
)

// NAK reason codes (16-bit, offset 10 of the NAK payload).
const (
	NakGeneralFailure    = 0x0000
	NakModeNotEnabled    = 0x0001
	NakIllegalPacket     = 0x0002
	NakFneUnauthorized   = 0x0003
	NakBadConnState      = 0x0004
	NakInvalidConfigData = 0x0005
	NakPeerReset         = 0x0006
	NakPeerAcl           = 0x0007
	NakFneMaxConn        = 0x0008
	NakInvalid           = 0xFFFF
)
