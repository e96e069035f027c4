package stun

import (
	"errors"
	"fmt"
)

// ErrorCodeAttribute represents ERROR-CODE attribute.
//
// RFC 5389 Section 15.6.
type ErrorCodeAttribute struct {
	Code   ErrorCode
	Reason []byte
}

func (c ErrorCodeAttribute) String() string {
	return fmt.Sprintf("%d: %s", c.Code, c.Reason)
}

// ErrorCode is code of ERROR-CODE attribute.
type ErrorCode int

// Possible error codes, RFC 5389 Section 15.6 and RFC 5766 Section 15.
const (
	CodeTryAlternate     ErrorCode = 300
	CodeBadRequest       ErrorCode = 400
	CodeUnauthorized     ErrorCode = 401
	CodeUnknownAttribute ErrorCode = 420
	CodeStaleNonce       ErrorCode = 438
	CodeRoleConflict     ErrorCode = 487
	CodeServerError      ErrorCode = 500

	// CodeInsufficientCapacity is RFC 5766 Section 15.8: the server has
	// no capacity left to fulfill an allocation request.
	CodeInsufficientCapacity ErrorCode = 508
)

// Reason returns the recommended reason phrase for c, or "Unknown Error"
// for a code this package has no text for.
func (c ErrorCode) Reason() string {
	switch c {
	case CodeTryAlternate:
		return "Try Alternate"
	case CodeBadRequest:
		return "Bad Request"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeUnknownAttribute:
		return "Unknown Attribute"
	case CodeStaleNonce:
		return "Stale Nonce"
	case CodeRoleConflict:
		return "Role Conflict"
	case CodeServerError:
		return "Server Error"
	case CodeInsufficientCapacity:
		return "Insufficient Capacity"
	default:
		return "Unknown Error"
	}
}

// AddTo adds ERROR-CODE to m using c's recommended reason phrase.
func (c ErrorCode) AddTo(m *Message) error {
	return ErrorCodeAttribute{Code: c, Reason: []byte(c.Reason())}.AddTo(m)
}

const (
	errorCodeClassByte  = 2
	errorCodeNumberByte = 3
	errorCodeReasonStart = 4
	errorCodeMaxReasonB  = 763
)

// ErrErrorCodeTooBig means that reason bytes are too big (more than 763 bytes,
// the RFC 5389 bound for a reason phrase of fewer than 128 characters).
var ErrErrorCodeTooBig = errors.New("reason bytes for error code are too big")

// AddTo adds ERROR-CODE to m.
func (c ErrorCodeAttribute) AddTo(m *Message) error {
	if len(c.Reason) > errorCodeMaxReasonB {
		return ErrErrorCodeTooBig
	}
	value := make([]byte, 4+len(c.Reason))
	num := int(c.Code) % 100
	class := int(c.Code) / 100
	value[errorCodeClassByte] = byte(class)
	value[errorCodeNumberByte] = byte(num)
	copy(value[errorCodeReasonStart:], c.Reason)
	m.Add(AttrErrorCode, value)

	return nil
}

// GetFrom decodes ERROR-CODE from m. Can return *AttrLengthErr,
// ErrAttributeNotFound, or decoding error.
func (c *ErrorCodeAttribute) GetFrom(m *Message) error {
	v, err := m.Get(AttrErrorCode)
	if err != nil {
		return err
	}
	if len(v) < errorCodeReasonStart {
		return &AttrLengthErr{
			Attr:     AttrErrorCode,
			Expected: errorCodeReasonStart,
			Got:      len(v),
		}
	}
	class := int(v[errorCodeClassByte])
	number := int(v[errorCodeNumberByte])
	code := class*100 + number
	c.Code = ErrorCode(code) //nolint:gosec // G115, bounded by protocol above
	c.Reason = v[errorCodeReasonStart:]

	return nil
}
