package keys

import "testing"

type fakeVT struct{ appMode bool }

func (f fakeVT) CursorKeyAppMode() bool { return f.appMode }

func TestTranslateStaticKeys(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"Enter", "\r"},
		{"tab", "\t"},
		{"escape", "\x1b"},
		{"Backspace", "\x7f"},
		{"F1", "\x1bOP"},
		{"f5", "\x1b[15~"},
		{"PageUp", "\x1b[5~"},
	}
	for _, tt := range tests {
		got := Translate(tt.key, nil)
		if string(got) != tt.want {
			t.Errorf("Translate(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestTranslateCursorKeysNormalMode(t *testing.T) {
	got := Translate("Up", fakeVT{appMode: false})
	if string(got) != "\x1b[A" {
		t.Errorf("normal-mode Up = %q, want CSI A", got)
	}
}

func TestTranslateCursorKeysAppMode(t *testing.T) {
	got := Translate("up", fakeVT{appMode: true})
	if string(got) != "\x1bOA" {
		t.Errorf("app-mode Up = %q, want SS3 A", got)
	}
	got = Translate("home", fakeVT{appMode: true})
	if string(got) != "\x1bOH" {
		t.Errorf("app-mode Home = %q, want SS3 H", got)
	}
}

func TestTranslateControlKeys(t *testing.T) {
	tests := []struct {
		key  string
		want byte
	}{
		{"C-c", 0x03},
		{"C-d", 0x04},
		{"c-z", 0x1a},
		{"C-l", 0x0c},
		{"C-@", 0x00},
	}
	for _, tt := range tests {
		got := Translate(tt.key, nil)
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("Translate(%q) = %v, want [%d]", tt.key, got, tt.want)
		}
	}
}

func TestTranslateAngleBracketForm(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"<Enter>", "\r"},
		{"<C-c>", "\x03"},
		{"<Up>", "\x1b[A"},
	}
	for _, tt := range tests {
		got := Translate(tt.key, nil)
		if string(got) != tt.want {
			t.Errorf("Translate(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestTranslateUnknownFallsBackToLiteral(t *testing.T) {
	got := Translate("hello", nil)
	if string(got) != "hello" {
		t.Errorf("Translate(unknown) = %q, want literal passthrough", got)
	}
}
