package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	for _, c := range []string{ErrInvalidPayload, ErrNotFound, ErrDenied} {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("") || IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestErrorMsg_UnknownCodeIsDenied(t *testing.T) {
	m := ErrorMsg("E_WHATEVER", "nope")
	if m.Type != TypeError || m.Code != ErrDenied || m.Message != "nope" {
		t.Fatalf("unexpected %+v", m)
	}
	if m := ErrorMsg(ErrNotFound, "tile_not_found"); m.Code != ErrNotFound {
		t.Fatalf("code=%q", m.Code)
	}
}
