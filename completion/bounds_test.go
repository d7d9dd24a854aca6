package completion

import "testing"

func TestTokenBounds(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		cursor    int
		wantStart int
		wantEnd   int
	}{
		{"after dot", "foo.bar", 7, 4, 7},
		{"after operator", "a+b", 3, 2, 3},
		{"empty text", "", 0, 0, 0},
		{"whole prefix is identifier", "value", 5, 0, 5},
		{"cursor at start", "foo", 0, 0, 0},
		{"cursor mid token", "foobar", 3, 0, 3},
		{"underscore counts", "my_var", 6, 0, 6},
		{"digits count", "x12", 3, 0, 3},
		{"space breaks", "a b", 3, 2, 3},
		{"paren breaks", "f(x", 3, 2, 3},
		{"cursor right after break", "a.", 2, 2, 2},
		{"unicode letters", "héllo", 6, 0, 6},
		{"unicode break", "π+τ", 5, 3, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := TokenBounds(tt.text, tt.cursor)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("TokenBounds(%q, %d) = (%d, %d), want (%d, %d)",
					tt.text, tt.cursor, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestTokenBoundsInvariants(t *testing.T) {
	texts := []string{"", "a", "foo.bar", "x = y + z2", "héllo wörld", "_a9._b"}
	for _, text := range texts {
		for cursor := 0; cursor <= len(text); cursor++ {
			start, end := TokenBounds(text, cursor)
			if end != cursor {
				t.Errorf("TokenBounds(%q, %d): end = %d, want cursor", text, cursor, end)
			}
			if start < 0 || start > cursor {
				t.Errorf("TokenBounds(%q, %d): start = %d out of [0, cursor]", text, cursor, start)
			}
		}
	}
}

func TestTokenBoundsPanicsOnBadCursor(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		cursor int
	}{
		{"negative", "abc", -1},
		{"past end", "abc", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("TokenBounds(%q, %d) should panic", tt.text, tt.cursor)
				}
			}()
			TokenBounds(tt.text, tt.cursor)
		})
	}
}

func TestOffsetConversion(t *testing.T) {
	// "héllo": h=1 byte, é=2 bytes.
	text := "héllo"

	if got := ByteOffset(text, 0); got != 0 {
		t.Errorf("ByteOffset(0) = %d, want 0", got)
	}
	if got := ByteOffset(text, 2); got != 3 {
		t.Errorf("ByteOffset(2) = %d, want 3", got)
	}
	if got := ByteOffset(text, 5); got != 6 {
		t.Errorf("ByteOffset(5) = %d, want 6", got)
	}
	if got := RuneOffset(text, 3); got != 2 {
		t.Errorf("RuneOffset(3) = %d, want 2", got)
	}
	if got := RuneOffset(text, 6); got != 5 {
		t.Errorf("RuneOffset(6) = %d, want 5", got)
	}

	// Round trip at every rune boundary.
	for r := 0; r <= 5; r++ {
		if got := RuneOffset(text, ByteOffset(text, r)); got != r {
			t.Errorf("round trip of rune offset %d = %d", r, got)
		}
	}
}

func TestByteOffsetPanicsPastEnd(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("ByteOffset past the end should panic")
		}
	}()
	ByteOffset("ab", 3)
}
