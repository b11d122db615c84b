// Package keys translates the named keys accepted by a send-keys operation
// into the byte sequences a terminal application expects to read from its
// input: literal text passes through unchanged, and named specials (Enter,
// arrows, function keys, C-<ch> controls) resolve to their control bytes or
// escape sequences, including the DECCKM-dependent application-mode
// variants for the arrow and navigation keys.
package keys

import (
	"fmt"
	"strings"
)

// AppModeAware is satisfied by anything that can report whether cursor-key
// application mode (DECCKM) is currently active; *term.VT implements it.
type AppModeAware interface {
	CursorKeyAppMode() bool
}

// Translate resolves a single key token to the bytes to write to the
// child's input. A named key may be given bare ("Enter") or wrapped in
// angle brackets ("<Enter>"); unknown tokens are returned as literal UTF-8
// text, brackets and all.
func Translate(token string, vt AppModeAware) []byte {
	name := strings.ToLower(strings.TrimSpace(token))
	if len(name) >= 2 && name[0] == '<' && name[len(name)-1] == '>' {
		name = name[1 : len(name)-1]
	}

	if seq, ok := staticKeys[name]; ok {
		return []byte(seq)
	}

	appMode := vt != nil && vt.CursorKeyAppMode()
	if seq, ok := cursorKeys(name, appMode); ok {
		return []byte(seq)
	}

	if ctrl, ok := controlByte(name); ok {
		return []byte{ctrl}
	}

	return []byte(token)
}

var staticKeys = map[string]string{
	"enter":     "\r",
	"return":    "\r",
	"tab":       "\t",
	"backspace": "\x7f",
	"escape":    "\x1b",
	"esc":       "\x1b",
	"space":     " ",

	"pageup":   "\x1b[5~",
	"pagedown": "\x1b[6~",
	"delete":   "\x1b[3~",
	"insert":   "\x1b[2~",

	"f1":  "\x1bOP",
	"f2":  "\x1bOQ",
	"f3":  "\x1bOR",
	"f4":  "\x1bOS",
	"f5":  "\x1b[15~",
	"f6":  "\x1b[17~",
	"f7":  "\x1b[18~",
	"f8":  "\x1b[19~",
	"f9":  "\x1b[20~",
	"f10": "\x1b[21~",
	"f11": "\x1b[23~",
	"f12": "\x1b[24~",
}

// cursorKeys resolves the keys whose encoding depends on DECCKM: in
// application mode they're prefixed with SS3 (ESC O) rather than CSI.
func cursorKeys(name string, appMode bool) (string, bool) {
	normal := map[string]string{
		"up":    "\x1b[A",
		"down":  "\x1b[B",
		"right": "\x1b[C",
		"left":  "\x1b[D",
		"home":  "\x1b[H",
		"end":   "\x1b[F",
	}
	app := map[string]string{
		"up":    "\x1bOA",
		"down":  "\x1bOB",
		"right": "\x1bOC",
		"left":  "\x1bOD",
		"home":  "\x1bOH",
		"end":   "\x1bOF",
	}
	table := normal
	if appMode {
		table = app
	}
	seq, ok := table[name]
	return seq, ok
}

// controlByte resolves "C-<ch>" tokens to their control-code byte, e.g.
// "C-c" -> 0x03. Only the printable ASCII range that has a well-defined
// control mapping (@ through _) is recognized.
func controlByte(name string) (byte, bool) {
	if !strings.HasPrefix(name, "c-") || len(name) != 3 {
		return 0, false
	}
	ch := name[2]
	upper := ch
	if upper >= 'a' && upper <= 'z' {
		upper -= 'a' - 'A'
	}
	if upper < '@' || upper > '_' {
		return 0, false
	}
	return upper - '@', true
}

// Describe renders a control byte back to its "C-<ch>" name; any other
// byte is returned as its own character.
func Describe(b byte) string {
	if b < 0x20 {
		return fmt.Sprintf("C-%c", b+'@')
	}
	return string(rune(b))
}
