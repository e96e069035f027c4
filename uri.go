package stun

import (
	"errors"
	"net"
	"net/url"
	"strconv"
)

var (
	// ErrSchemeType indicates the scheme type could not be parsed.
	ErrSchemeType = errors.New("unknown scheme type")

	// ErrSTUNQuery indicates query arguments are provided in a STUN URL.
	ErrSTUNQuery = errors.New("queries not supported in stun address")

	// ErrHost indicates malformed hostname is provided.
	ErrHost = errors.New("invalid hostname")

	// ErrPort indicates malformed port is provided.
	ErrPort = errors.New("invalid port")
)

// SchemeType is the scheme of a STUN URI, stun: or the TLS-over-TCP
// variant stuns:.
type SchemeType int

// Recognized URI schemes.
const (
	SchemeTypeUnknown SchemeType = iota
	SchemeTypeSTUN
	SchemeTypeSTUNS
)

// NewSchemeType parses raw into a SchemeType, returning
// SchemeTypeUnknown if raw names neither "stun" nor "stuns".
func NewSchemeType(raw string) SchemeType {
	switch raw {
	case "stun":
		return SchemeTypeSTUN
	case "stuns":
		return SchemeTypeSTUNS
	default:
		return SchemeTypeUnknown
	}
}

func (t SchemeType) String() string {
	switch t {
	case SchemeTypeSTUN:
		return "stun"
	case SchemeTypeSTUNS:
		return "stuns"
	default:
		return "unknown"
	}
}

// URI is a parsed stun: or stuns: URI, as described in RFC 7064.
type URI struct {
	Scheme SchemeType
	Host   string
	Port   int
}

// defaultPortFor returns the IANA-assigned port for scheme: 3478 for
// stun:, 5349 for the TLS-over-TCP stuns:.
func defaultPortFor(scheme SchemeType) int {
	if scheme == SchemeTypeSTUNS {
		return 5349
	}
	return DefaultPort
}

// ParseURI parses raw as a STUN URI per RFC 7064's ABNF
// ("stun:" host [":" port]). A missing port defaults per the scheme.
func ParseURI(raw string) (*URI, error) {
	rawParts, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	var uri URI
	uri.Scheme = NewSchemeType(rawParts.Scheme)
	if uri.Scheme == SchemeTypeUnknown {
		return nil, ErrSchemeType
	}
	host, rawPort, splitErr := net.SplitHostPort(rawParts.Opaque)
	if splitErr != nil {
		var addrErr *net.AddrError
		if errors.As(splitErr, &addrErr) && addrErr.Err == "missing port in address" {
			uri.Host = rawParts.Opaque
			uri.Port = defaultPortFor(uri.Scheme)
			if uri.Host == "" {
				return nil, ErrHost
			}
			return &uri, validateQuery(rawParts.RawQuery)
		}
		return nil, splitErr
	}
	uri.Host = host
	if uri.Host == "" {
		return nil, ErrHost
	}
	if uri.Port, err = strconv.Atoi(rawPort); err != nil {
		return nil, ErrPort
	}
	return &uri, validateQuery(rawParts.RawQuery)
}

// validateQuery rejects any query string, since neither stun: nor
// stuns: carries query parameters.
func validateQuery(raw string) error {
	qArgs, err := url.ParseQuery(raw)
	if err != nil || len(qArgs) > 0 {
		return ErrSTUNQuery
	}
	return nil
}

func (u URI) String() string {
	return u.Scheme.String() + ":" + net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// IsSecure reports whether u uses the TLS-over-TCP stuns: scheme.
func (u URI) IsSecure() bool {
	return u.Scheme == SchemeTypeSTUNS
}

// Network returns the net.Dial network name matching u's scheme: "tcp"
// for stuns:, "udp" otherwise.
func (u URI) Network() string {
	if u.IsSecure() {
		return "tcp"
	}
	return "udp"
}

// Addr returns the host:port dial address for u, ignoring scheme.
func (u URI) Addr() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}
