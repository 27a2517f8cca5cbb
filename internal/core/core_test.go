package core

import (
	"errors"
	"fmt"
	"testing"
)

// Test zero values of core structs
func TestStructZeroValues(t *testing.T) {
	t.Run("IPHeader", func(t *testing.T) {
		var ip IPHeader
		if ip.SrcIP.IsValid() {
			t.Errorf("expected invalid SrcIP, got %v", ip.SrcIP)
		}
		if ip.HeaderLen() != 0 {
			t.Errorf("expected HeaderLen=0, got %d", ip.HeaderLen())
		}
	})

	t.Run("SGA", func(t *testing.T) {
		var sga *SGA
		if sga.NumSegments() != 0 || sga.TotalLen() != 0 {
			t.Errorf("nil SGA should be empty, got %d segments, %d bytes", sga.NumSegments(), sga.TotalLen())
		}
	})

	t.Run("LinkAddr", func(t *testing.T) {
		var a LinkAddr
		if !a.IsZero() {
			t.Errorf("expected zero link address, got %s", a)
		}
	})
}

func TestSGA(t *testing.T) {
	sga := NewSGA([]byte("ab"), []byte("cdef"), nil)
	if sga.NumSegments() != 3 {
		t.Errorf("expected 3 segments, got %d", sga.NumSegments())
	}
	if sga.TotalLen() != 6 {
		t.Errorf("expected 6 bytes, got %d", sga.TotalLen())
	}

	sga.Reset()
	if sga.NumSegments() != 0 {
		t.Errorf("expected empty SGA after Reset, got %d segments", sga.NumSegments())
	}
}

func TestLinkAddr(t *testing.T) {
	tests := []struct {
		input   string
		want    LinkAddr
		wantErr bool
	}{
		{"24:8a:07:50:95:08", LinkAddr{0x24, 0x8a, 0x07, 0x50, 0x95, 0x08}, false},
		{"50-6B-4B-48-F8-F2", LinkAddr{0x50, 0x6b, 0x4b, 0x48, 0xf8, 0xf2}, false},
		{"ff:ff:ff:ff:ff:ff", Broadcast, false},
		{"00:00:5e:00:53:01:02:03", LinkAddr{}, true}, // EUI-64
		{"not-a-mac", LinkAddr{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLinkAddr(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLinkAddr(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLinkAddr(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}

	if s := Multicast.String(); s != "01:1b:19:00:00:00" {
		t.Errorf("unexpected multicast string %q", s)
	}

	if _, ok := LinkAddrFromSlice([]byte{1, 2, 3}); ok {
		t.Error("LinkAddrFromSlice accepted a 3-byte slice")
	}
}

func TestQToken(t *testing.T) {
	push := MakeQToken(7, DirPush)
	pop := MakeQToken(7, DirPop)

	if !push.IsPush() {
		t.Errorf("token %d should be a push token", push)
	}
	if pop.IsPush() {
		t.Errorf("token %d should be a pop token", pop)
	}
	if push == pop {
		t.Error("push and pop tokens with the same sequence must differ")
	}
	if DirPush.String() != "push" || DirPop.String() != "pop" {
		t.Errorf("unexpected direction names %q %q", DirPush, DirPop)
	}
}

// Test sentinel errors
func TestSentinelErrors(t *testing.T) {
	t.Run("ErrorMessages", func(t *testing.T) {
		tests := []struct {
			err     error
			message string
		}{
			{ErrPending, "bypass: operation pending"},
			{ErrUnknownToken, "bypass: unknown queue token"},
			{ErrOversizeMessage, "bypass: message exceeds frame capacity"},
			{ErrMalformedFrame, "bypass: malformed frame"},
			{ErrNotForEndpoint, "bypass: frame not for this endpoint"},
			{ErrConfigInvalid, "bypass: invalid configuration"},
		}

		for _, tt := range tests {
			if tt.err.Error() != tt.message {
				t.Errorf("expected error message %q, got %q", tt.message, tt.err.Error())
			}
		}
	})

	t.Run("ErrorWrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("segment 3: %w", ErrMalformedFrame)
		if !errors.Is(wrapped, ErrMalformedFrame) {
			t.Error("errors.Is failed for wrapped error")
		}
	})
}
