package object

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "previews/abc/slide-001.png", want: "previews/abc/slide-001.png"},
		{in: "/runs//r1/deck.json", want: "runs/r1/deck.json"},
		{in: "runs/../secrets", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q) expected ErrInvalidKey, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CleanKey(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("CleanKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
