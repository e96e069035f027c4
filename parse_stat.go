package stun

// ParseStat accumulates counters for the outcomes of repeated calls to
// Message.DecodeWithStat, grouped the way the wire format can fail:
// never a panic, always one of these named rejection reasons.
type ParseStat struct {
	Success                          uint64
	Error                            uint64
	InvalidSize                      uint64
	NotPadded                        uint64
	MessageLengthError               uint64
	MagicCookieError                 uint64
	InvalidAttrSize                  uint64
	UnknownComprehensionRequiredAttr uint64
}

type statKind int

const (
	statSuccess statKind = iota
	statInvalidSize
	statNotPadded
	statMessageLengthError
	statMagicCookieError
	statInvalidAttrSize
	statUnknownComprehensionRequired
)

// inc increments the counter for kind. A nil receiver is a no-op, so
// callers can pass a nil *ParseStat when they do not care to collect
// statistics.
func (s *ParseStat) inc(kind statKind) {
	if s == nil {
		return
	}
	switch kind {
	case statSuccess:
		s.Success++
	case statInvalidSize:
		s.Error++
		s.InvalidSize++
	case statNotPadded:
		s.Error++
		s.NotPadded++
	case statMessageLengthError:
		s.Error++
		s.MessageLengthError++
	case statMagicCookieError:
		s.Error++
		s.MagicCookieError++
	case statInvalidAttrSize:
		s.Error++
		s.InvalidAttrSize++
	case statUnknownComprehensionRequired:
		s.UnknownComprehensionRequiredAttr++
	}
}
