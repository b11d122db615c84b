package term

import (
	"strings"
	"testing"
)

func TestFeedPlainTextAdvancesCursor(t *testing.T) {
	v := New(10, 3)
	v.Feed([]byte("hi"))
	row, col, _ := v.Cursor()
	if row != 0 || col != 2 {
		t.Fatalf("cursor = (%d,%d), want (0,2)", row, col)
	}
	snap := v.Snapshot(false)
	lines := strings.Split(snap.Text, "\n")
	if lines[0] != "hi        " {
		t.Fatalf("line 0 = %q", lines[0])
	}
}

func TestFeedNewlineAndCR(t *testing.T) {
	v := New(5, 3)
	v.Feed([]byte("ab\r\ncd"))
	row, col, _ := v.Cursor()
	if row != 1 || col != 2 {
		t.Fatalf("cursor = (%d,%d), want (1,2)", row, col)
	}
}

func TestAutowrapAtRightMargin(t *testing.T) {
	v := New(3, 3)
	v.Feed([]byte("abcd"))
	row, col, _ := v.Cursor()
	if row != 1 || col != 1 {
		t.Fatalf("cursor = (%d,%d), want (1,1) after wrap", row, col)
	}
	snap := v.Snapshot(false)
	lines := strings.Split(snap.Text, "\n")
	if lines[0] != "abc" || lines[1] != "d  " {
		t.Fatalf("lines = %q, %q", lines[0], lines[1])
	}
}

func TestNoAutowrapWhenDisabled(t *testing.T) {
	v := New(3, 3)
	v.Feed([]byte("\x1b[?7l")) // DECRST 7: disable autowrap
	v.Feed([]byte("abcd"))
	row, col, _ := v.Cursor()
	if row != 0 || col != 2 {
		t.Fatalf("cursor = (%d,%d), want (0,2) stuck at margin", row, col)
	}
}

func TestCursorPositioningCUP(t *testing.T) {
	v := New(10, 10)
	v.Feed([]byte("\x1b[3;5H"))
	row, col, _ := v.Cursor()
	if row != 2 || col != 4 {
		t.Fatalf("cursor = (%d,%d), want (2,4)", row, col)
	}
}

func TestEraseInDisplay(t *testing.T) {
	v := New(5, 2)
	v.Feed([]byte("hello\x1b[1;1H\x1b[2J"))
	snap := v.Snapshot(false)
	if snap.Text != "     \n     " {
		t.Fatalf("text = %q, want all blanks", snap.Text)
	}
}

func TestSGRColorRoundTrip(t *testing.T) {
	v := New(5, 1)
	v.Feed([]byte("\x1b[31mhi\x1b[0m"))
	snap := v.Snapshot(true)
	if len(snap.Runs) < 2 {
		t.Fatalf("expected at least 2 runs, got %d", len(snap.Runs))
	}
	if snap.Runs[0].Style.FG.Kind != ColorIndexed || snap.Runs[0].Style.FG.Index != 1 {
		t.Fatalf("run 0 style = %+v, want red fg", snap.Runs[0].Style)
	}

	encoded := Encode(snap)
	v2 := New(5, 1)
	v2.Feed(encoded)
	snap2 := v2.Snapshot(true)
	if snap2.Text != snap.Text {
		t.Fatalf("round trip text = %q, want %q", snap2.Text, snap.Text)
	}
	if snap2.Runs[0].Style != snap.Runs[0].Style {
		t.Fatalf("round trip style = %+v, want %+v", snap2.Runs[0].Style, snap.Runs[0].Style)
	}
}

func TestResizeRoundTripExactDimensions(t *testing.T) {
	v := New(10, 5)
	v.Feed([]byte("hello world this overflows"))
	v.Resize(6, 3)
	snap := v.Snapshot(false)
	if snap.Cols != 6 || snap.Rows != 3 {
		t.Fatalf("Cols/Rows = %d/%d, want 6/3", snap.Cols, snap.Rows)
	}
	lines := strings.Split(snap.Text, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for _, l := range lines {
		if len([]rune(l)) != 6 {
			t.Fatalf("line %q has width %d, want 6", l, len([]rune(l)))
		}
	}
}

func TestAlternateScreenRestoresMainContent(t *testing.T) {
	v := New(5, 2)
	v.Feed([]byte("main1"))
	v.Feed([]byte("\x1b[?1049h"))
	v.Feed([]byte("alt"))
	v.Feed([]byte("\x1b[?1049l"))
	snap := v.Snapshot(false)
	lines := strings.Split(snap.Text, "\n")
	if lines[0] != "main1" {
		t.Fatalf("line 0 = %q, want main1 restored", lines[0])
	}
}

func TestScrollbackCapturedOnFullScreenScroll(t *testing.T) {
	v := New(5, 2)
	v.Feed([]byte("one\r\ntwo\r\nthree"))
	if len(v.g.scrollback) == 0 {
		t.Fatal("expected scrollback to capture scrolled-off rows")
	}
}

func TestCursorKeyAppModeToggle(t *testing.T) {
	v := New(5, 5)
	if v.CursorKeyAppMode() {
		t.Fatal("app mode should start false")
	}
	v.Feed([]byte("\x1b[?1h"))
	if !v.CursorKeyAppMode() {
		t.Fatal("DECSET 1 should enable app mode")
	}
	v.Feed([]byte("\x1b[?1l"))
	if v.CursorKeyAppMode() {
		t.Fatal("DECRST 1 should disable app mode")
	}
}

func TestMalformedSequenceDoesNotPanicOrHang(t *testing.T) {
	v := New(5, 5)
	v.Feed([]byte("\x1b[9999999999999999999999;zzzzm garbage \x1bP skip \x1b\\ done"))
	snap := v.Snapshot(false)
	if !strings.Contains(snap.Text, "done") {
		t.Fatalf("expected parser to recover and print trailing text, got %q", snap.Text)
	}
}

func TestCombiningMarkFoldedOntoPrecedingCell(t *testing.T) {
	v := New(5, 1)
	// 'e' + combining acute accent (U+0301)
	v.Feed([]byte("é"))
	_, col, _ := v.Cursor()
	if col != 1 {
		t.Fatalf("combining mark should not advance cursor past 1 cell, got col=%d", col)
	}
}
