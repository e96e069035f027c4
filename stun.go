// Package stun implements Session Traversal Utilities for NAT (STUN) RFC 5389.
//
// Definitions
//
// STUN Agent: A STUN agent is an entity that implements the STUN
// protocol. The entity can be either a STUN client or a STUN
// server.
//
// STUN Client: A STUN client is an entity that sends STUN requests and
// receives STUN responses. A STUN client can also send indications.
// In this specification, the terms STUN client and client are
// synonymous.
//
// STUN Server: A STUN server is an entity that receives STUN requests
// and sends STUN responses. A STUN server can also send
// indications. In this specification, the terms STUN server and
// server are synonymous.
//
// Transport Address: The combination of an IP address and Port number
// (such as a UDP or TCP Port number).
package stun

import (
	"encoding/binary"
	"io"
)

// bin is shorthand to binary.BigEndian.
var bin = binary.BigEndian

// DefaultPort is IANA assigned Port for "stun" protocol.
const DefaultPort = 3478

// writeOrPanic writes b to w, panicking if Write returns an error. Used
// with hash.Hash, which embeds io.Writer and never errors on Write for
// any conforming implementation.
func writeOrPanic(w io.Writer, b []byte) {
	if _, err := w.Write(b); err != nil {
		panic(err)
	}
}

// readFullOrPanic calls io.ReadFull(r, buf), panicking if it returns an
// error. Used where the caller already holds a buffer sized to r's
// known-fixed output and a short read signals a broken Reader.
func readFullOrPanic(r io.Reader, buf []byte) []byte {
	if _, err := io.ReadFull(r, buf); err != nil {
		panic(err)
	}

	return buf
}
