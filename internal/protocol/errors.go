package protocol

const (
	ErrInvalidPayload = "INVALID_PAYLOAD"
	ErrNotFound       = "NOT_FOUND"
	ErrDenied         = "DENIED"
)

var knownCodes = map[string]struct{}{
	ErrInvalidPayload: {},
	ErrNotFound:       {},
	ErrDenied:         {},
}

func IsKnownCode(code string) bool {
	_, ok := knownCodes[code]
	return ok
}

// ErrorMsg builds a presence:error. Unknown codes collapse to DENIED.
func ErrorMsg(code, message string) PresenceErrorMsg {
	if !IsKnownCode(code) {
		code = ErrDenied
	}
	return PresenceErrorMsg{Type: TypeError, Code: code, Message: message}
}
