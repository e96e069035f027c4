package stun

import (
	"errors"
	"net"
)

// Action is the outcome of Server.Process: exactly one of Respond,
// Ignore, or ServerError. It is a closed sum type: every case has an
// unexported marker method, and call sites switch on the concrete
// type rather than testing fields.
type Action interface {
	isAction()
}

// Respond carries a response ready to be written back to the
// requester, the request it answers, and, if the request was
// authenticated, the MessageIntegrity key the response was signed
// with (so a caller that also logs/forwards can re-verify it).
type Respond struct {
	Response  *Message
	Request   *Message
	Integrity *MessageIntegrity
}

func (Respond) isAction() {}

// Ignore means the input must be silently dropped: RFC 5389 Section
// 7.3 requires a STUN agent never reply to a message it cannot parse
// or does not recognize as a request.
type Ignore struct{}

func (Ignore) isAction() {}

// ServerError carries an error response (400/401/420) ready to be
// written back to the requester.
type ServerError struct {
	Response *Message
}

func (ServerError) isAction() {}

// Credentials resolves a short-term credential password by username.
type Credentials interface {
	Password(username string) (password string, ok bool)
}

// StaticCredentials is a Credentials backed by a fixed username→password
// map, as loaded from a Config's Users table.
type StaticCredentials map[string]string

// Password implements Credentials.
func (c StaticCredentials) Password(username string) (string, bool) {
	p, ok := c[username]

	return p, ok
}

// Server is a stateless RFC 5389 Binding server: a Binding request in,
// a Binding success response (or a 400/401/420 error response) out.
// It keeps no per-client state between Process calls, matching RFC
// 5389 Section 10's recommendation that a basic server not require the
// bookkeeping a credential mechanism usually implies. A request carrying
// neither USERNAME nor MESSAGE-INTEGRITY is answered whatever
// Credentials holds; with Credentials nil no username is known, so a
// request carrying both is answered with 401.
type Server struct {
	// Credentials resolves passwords for short-term credential
	// authentication (RFC 5389 Section 10.1.2) of requests carrying
	// USERNAME and MESSAGE-INTEGRITY. A request carrying only one of the
	// two is answered with 400; one carrying neither is not authenticated.
	Credentials Credentials

	// UseFingerprint appends FINGERPRINT to every response.
	UseFingerprint bool

	// Software, if non-empty, is echoed in every response's SOFTWARE
	// attribute.
	Software string
}

var errBadRemoteAddr = errors.New("stun: unsupported remote address type")

// Process decides how to answer a single packet received from
// remoteAddr. It never blocks and never touches the network itself;
// the transport agent (see client.go) or cmd/stund drive the actual
// net.PacketConn around it.
func (s *Server) Process(remoteAddr net.Addr, data []byte) (Action, error) {
	if !IsMessage(data) {
		return Ignore{}, nil
	}

	req := New()
	req.Raw = append(req.Raw[:0], data...)
	if err := req.Decode(); err != nil {
		return Ignore{}, nil
	}
	if req.Type.Class != ClassRequest {
		return Ignore{}, nil
	}

	if unknown := unknownRequiredAttrs(req); len(unknown) > 0 {
		resp, err := s.errorResponse(req, CodeUnknownAttribute, unknown)
		if err != nil {
			return nil, err
		}

		return ServerError{Response: resp}, nil
	}

	integrity, rejected, err := s.authenticate(req)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return rejected, nil
	}

	if req.Type.Method != MethodBinding {
		return Ignore{}, nil
	}

	resp, err := s.bindingResponse(remoteAddr, req, integrity)
	if err != nil {
		return nil, err
	}

	return Respond{Response: resp, Request: req, Integrity: integrity}, nil
}

// unknownRequiredAttrs returns, in parse order, every comprehension-required
// attribute type in req that this package does not recognize.
func unknownRequiredAttrs(req *Message) UnknownAttributes {
	var unknown UnknownAttributes
	for _, a := range req.Attributes {
		if a.Type.Required() && !a.Type.Known() {
			unknown = append(unknown, a.Type)
		}
	}

	return unknown
}

// authenticate implements the RFC 5389 Section 10.1.2 bifurcation:
// USERNAME present XOR MESSAGE-INTEGRITY present is a 400; both
// present but the username is unknown or the integrity check fails is
// a 401. It returns a non-nil rejected Action when the request must
// not proceed further, and a non-nil integrity key when the request
// was authenticated successfully (nil, nil, nil for a request carrying
// neither attribute).
func (s *Server) authenticate(req *Message) (integrity *MessageIntegrity, rejected Action, err error) {
	var username Username
	hasUsername := username.GetFrom(req) == nil
	hasIntegrity := req.Contains(AttrMessageIntegrity)

	if hasUsername != hasIntegrity {
		resp, buildErr := s.errorResponse(req, CodeBadRequest, nil)
		if buildErr != nil {
			return nil, nil, buildErr
		}

		return nil, ServerError{Response: resp}, nil
	}
	if !hasUsername {
		return nil, nil, nil
	}

	password, known := "", false
	if s.Credentials != nil {
		password, known = s.Credentials.Password(username.String())
	}
	if !known {
		resp, buildErr := s.errorResponse(req, CodeUnauthorized, nil)
		if buildErr != nil {
			return nil, nil, buildErr
		}

		return nil, ServerError{Response: resp}, nil
	}

	key := NewShortTermIntegrity(password)
	if checkErr := key.Check(req); checkErr != nil {
		resp, buildErr := s.errorResponse(req, CodeUnauthorized, nil)
		if buildErr != nil {
			return nil, nil, buildErr
		}

		return nil, ServerError{Response: resp}, nil
	}

	return &key, nil, nil
}

func (s *Server) bindingResponse(remoteAddr net.Addr, req *Message, integrity *MessageIntegrity) (*Message, error) {
	ip, port, err := addrToIPPort(remoteAddr)
	if err != nil {
		return nil, err
	}

	resp := New()
	resp.TransactionID = req.TransactionID
	resp.Type = BindingSuccess

	setters := []Setter{XORMappedAddress{IP: ip, Port: port}}
	if s.Software != "" {
		setters = append(setters, NewSoftware(s.Software))
	}
	if integrity != nil {
		setters = append(setters, *integrity)
	}
	if s.UseFingerprint {
		setters = append(setters, Fingerprint)
	}
	if err := resp.Build(setters...); err != nil {
		return nil, err
	}

	return resp, nil
}

// errorResponse builds an error response of the given code to req,
// echoing req's method and transaction id. unknown, when non-empty, is
// attached as UNKNOWN-ATTRIBUTES (the 420 case).
func (s *Server) errorResponse(req *Message, code ErrorCode, unknown UnknownAttributes) (*Message, error) {
	resp := New()
	resp.TransactionID = req.TransactionID
	resp.Type = MessageType{Method: req.Type.Method, Class: ClassErrorResponse}

	setters := []Setter{code}
	if len(unknown) > 0 {
		setters = append(setters, unknown)
	}
	if s.Software != "" {
		setters = append(setters, NewSoftware(s.Software))
	}
	if err := resp.Build(setters...); err != nil {
		return nil, err
	}

	return resp, nil
}

// addrToIPPort extracts the IP and port STUN needs from a net.Addr,
// supporting the two concrete types net.ListenPacket/net.Listen ever
// hand back for udp/tcp.
func addrToIPPort(addr net.Addr) (net.IP, int, error) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP, a.Port, nil
	case *net.TCPAddr:
		return a.IP, a.Port, nil
	default:
		return nil, 0, errBadRemoteAddr
	}
}
