package stun

import "fmt"

// AttrType is a 16-bit attribute type.
//
// https://tools.ietf.org/html/rfc5389#section-18.2
type AttrType uint16

// Attributes from comprehension-required range (0x0000-0x7FFF).
const (
	AttrMappedAddress     AttrType = 0x0001
	AttrUsername          AttrType = 0x0006
	AttrMessageIntegrity  AttrType = 0x0008
	AttrErrorCode         AttrType = 0x0009
	AttrUnknownAttributes AttrType = 0x000A
	AttrRealm             AttrType = 0x0014
	AttrNonce             AttrType = 0x0015
	AttrXORMappedAddress  AttrType = 0x0020

	// ICE attributes, RFC 8445 / RFC 8489 Section 18.2.
	AttrPriority       AttrType = 0x0024
	AttrUseCandidate   AttrType = 0x0025
	AttrICEControlled  AttrType = 0x8029
	AttrICEControlling AttrType = 0x802A

	// Attributes from RFC 5766 TURN, kept for agents that share a
	// STUN/TURN attribute codec.
	AttrChannelNumber          AttrType = 0x000C
	AttrLifetime               AttrType = 0x000D
	AttrXORPeerAddress         AttrType = 0x0012
	AttrData                   AttrType = 0x0013
	AttrXORRelayedAddress      AttrType = 0x0016
	AttrRequestedAddressFamily AttrType = 0x0017 // RFC 6156
	AttrEvenPort               AttrType = 0x0018
	AttrRequestedTransport     AttrType = 0x0019
	AttrDontFragment           AttrType = 0x001A
	AttrReservationToken       AttrType = 0x0022
)

// Attributes from comprehension-optional range (0x8000-0xFFFF).
const (
	AttrSoftware        AttrType = 0x8022
	AttrAlternateServer AttrType = 0x8023
	AttrFingerprint     AttrType = 0x8028

	// RFC 5780 NAT Behavior Discovery.
	AttrResponseOrigin AttrType = 0x802b
	AttrOtherAddress   AttrType = 0x802c

	// AttrOrigin is from "An Origin Attribute for the STUN Protocol".
	AttrOrigin AttrType = 0x802F
)

var attrNameTable = map[AttrType]string{
	AttrMappedAddress:          "MAPPED-ADDRESS",
	AttrUsername:               "USERNAME",
	AttrMessageIntegrity:       "MESSAGE-INTEGRITY",
	AttrErrorCode:              "ERROR-CODE",
	AttrUnknownAttributes:      "UNKNOWN-ATTRIBUTES",
	AttrRealm:                  "REALM",
	AttrNonce:                  "NONCE",
	AttrXORMappedAddress:       "XOR-MAPPED-ADDRESS",
	AttrPriority:               "PRIORITY",
	AttrUseCandidate:           "USE-CANDIDATE",
	AttrICEControlled:          "ICE-CONTROLLED",
	AttrICEControlling:         "ICE-CONTROLLING",
	AttrChannelNumber:          "CHANNEL-NUMBER",
	AttrLifetime:               "LIFETIME",
	AttrXORPeerAddress:         "XOR-PEER-ADDRESS",
	AttrData:                   "DATA",
	AttrXORRelayedAddress:      "XOR-RELAYED-ADDRESS",
	AttrRequestedAddressFamily: "REQUESTED-ADDRESS-FAMILY",
	AttrEvenPort:               "EVEN-PORT",
	AttrRequestedTransport:     "REQUESTED-TRANSPORT",
	AttrDontFragment:           "DONT-FRAGMENT",
	AttrReservationToken:       "RESERVATION-TOKEN",
	AttrSoftware:               "SOFTWARE",
	AttrAlternateServer:        "ALTERNATE-SERVER",
	AttrFingerprint:            "FINGERPRINT",
	AttrResponseOrigin:         "RESPONSE-ORIGIN",
	AttrOtherAddress:           "OTHER-ADDRESS",
	AttrOrigin:                 "ORIGIN",
}

// attrNames returns the table mapping known attribute types to their
// textual names, as registered with IANA.
func attrNames() map[AttrType]string {
	return attrNameTable
}

// Value returns uint16 representation of the attribute type.
func (t AttrType) Value() uint16 {
	return uint16(t)
}

func (t AttrType) String() string {
	if name, ok := attrNameTable[t]; ok {
		return name
	}

	return fmt.Sprintf("0x%04x", uint16(t))
}

// comprehensionRequiredMax is the highest attribute type value that
// still requires comprehension; see RFC 5389 Section 18.2.
const comprehensionRequiredMax = 0x7FFF

// Required returns true if the attribute type is comprehension-required,
// meaning an agent that does not recognize it must reject the message
// carrying it (a request gets a 420, a response fails the transaction).
func (t AttrType) Required() bool {
	return uint16(t) <= comprehensionRequiredMax
}

// Optional returns true if the attribute type is comprehension-optional,
// meaning an agent may safely ignore it if unrecognized.
func (t AttrType) Optional() bool {
	return !t.Required()
}

// Known reports whether t is a registered attribute type this package
// has a name for.
func (t AttrType) Known() bool {
	_, ok := attrNameTable[t]

	return ok
}
