// Package term implements the Terminal Model: it consumes the raw byte
// stream produced by a child process under a PTY, interprets it as a
// conforming VT/ANSI terminal of a configured geometry would, and produces
// plain-text and styled-run snapshots on demand.
//
// There is no off-the-shelf Go library that interprets an arbitrary child
// process's output into a persistent screen buffer the way this needs, so
// the state machine below is hand-written. Cell-width and combining-mark
// handling reuse github.com/mattn/go-runewidth and github.com/rivo/uniseg.
package term

import (
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

type parserState int

const (
	stateGround parserState = iota
	stateEscape
	stateCSI
	stateOSC
	stateSkipToST // DCS / PM / APC bodies: consumed and discarded
	stateCharset  // one byte following ESC ( or ESC )
)

// VT is the Terminal Model: a grid plus the byte-level parser that feeds
// it. The zero value is not usable; construct with New.
type VT struct {
	g *grid

	state         parserState
	private       byte
	params        []int
	curParam      int
	haveCurParam  bool
	intermediates []byte

	oscBuf []byte
	sawEsc bool // mid skip/OSC state, previous byte was ESC (maybe-ST)

	lastRune rune // for CSI 'b' REP

	createdAt time.Time
}

// New constructs a Terminal Model of the given geometry.
func New(cols, rows int) *VT {
	return &VT{g: newGrid(cols, rows), createdAt: time.Now()}
}

// Size returns the current geometry.
func (v *VT) Size() (cols, rows int) { return v.g.cols, v.g.rows }

// Cursor returns the cursor's row, column, and visibility. Column may equal
// cols, modeling pending-wrap.
func (v *VT) Cursor() (row, col int, visible bool) {
	return v.g.curRow, v.g.curCol, v.g.cursorVisible
}

// CursorKeyAppMode reports whether DECCKM is active, so a key translator
// can choose application-mode arrow-key sequences.
func (v *VT) CursorKeyAppMode() bool { return v.g.cursorKeyAppMode }

// Resize truncates/pads the grid, clamping the cursor into the new bounds
// and preserving scrollback.
func (v *VT) Resize(cols, rows int) {
	v.g.resize(cols, rows)
}

// Feed advances the state machine by data. It never fails: malformed or
// unrecognized sequences are silently dropped.
func (v *VT) Feed(data []byte) {
	i := 0
	for i < len(data) {
		b := data[i]

		if v.state == stateGround && b >= 0x20 && b != 0x7f {
			n := v.consumeGroundText(data[i:])
			i += n
			continue
		}

		v.step(b)
		i++
	}
}

// consumeGroundText processes a maximal run of printable bytes (anything
// that isn't a C0 control or DEL) starting at data[0] as UTF-8 text,
// grapheme cluster by grapheme cluster, and returns how many bytes it
// consumed.
func (v *VT) consumeGroundText(data []byte) int {
	end := 0
	for end < len(data) && data[end] >= 0x20 && data[end] != 0x7f {
		end++
	}
	run := string(data[:end])

	state := -1
	for len(run) > 0 {
		cluster, rest, _, newState := uniseg.FirstGraphemeClusterInString(run, state)
		state = newState
		v.emitCluster(cluster)
		run = rest
	}
	return end
}

func (v *VT) emitCluster(cluster string) {
	runes := []rune(cluster)
	if len(runes) == 0 {
		return
	}
	lead := runes[0]
	combining := runes[1:]
	wide := runewidth.RuneWidth(lead) >= 2
	v.g.putRune(lead, combining, wide)
	v.lastRune = lead
}

// step processes a single non-printable byte according to the current
// parser state.
func (v *VT) step(b byte) {
	switch v.state {
	case stateGround:
		v.groundControl(b)
	case stateEscape:
		v.escapeByte(b)
	case stateCSI:
		v.csiByte(b)
	case stateOSC:
		v.oscByte(b)
	case stateSkipToST:
		v.skipByte(b)
	case stateCharset:
		// Consume and ignore the charset designator byte.
		v.state = stateGround
	}
}

func (v *VT) groundControl(b byte) {
	switch b {
	case 0x07: // BEL outside of a string sequence: no-op
	case 0x08: // BS
		if v.g.curCol > 0 {
			v.g.curCol--
		}
		v.g.pendingWrap = false
	case 0x09: // HT
		v.g.curCol = v.g.nextTabstop()
		v.g.pendingWrap = false
	case 0x0a, 0x0b, 0x0c: // LF, VT, FF
		v.g.newline(v.g.lnm)
	case 0x0d: // CR
		v.g.curCol = 0
		v.g.pendingWrap = false
	case 0x1b:
		v.beginEscape()
	default:
		// Other C0 controls (NUL, SOH..ENQ, SO/SI, etc.) and DEL are
		// dropped silently.
	}
}

func (v *VT) beginEscape() {
	v.state = stateEscape
	v.private = 0
	v.params = v.params[:0]
	v.curParam = 0
	v.haveCurParam = false
	v.intermediates = v.intermediates[:0]
}

func (v *VT) escapeByte(b byte) {
	switch b {
	case '[':
		v.state = stateCSI
	case ']':
		v.state = stateOSC
		v.oscBuf = v.oscBuf[:0]
		v.sawEsc = false
	case 'P', '^', '_':
		v.state = stateSkipToST
		v.sawEsc = false
	case '(', ')':
		v.state = stateCharset
	case '7':
		v.g.saveCursor()
		v.state = stateGround
	case '8':
		v.g.restoreCursor()
		v.state = stateGround
	case 'D': // IND
		v.g.newline(false)
		v.state = stateGround
	case 'M': // RI
		top := v.g.topMargin()
		if v.g.curRow == top {
			v.g.scrollDown(top, v.g.bottomMargin(), 1)
		} else if v.g.curRow > 0 {
			v.g.curRow--
		}
		v.g.pendingWrap = false
		v.state = stateGround
	case 'E': // NEL
		v.g.newline(true)
		v.state = stateGround
	case 'H': // HTS
		v.g.tabstops[v.g.curCol] = true
		v.state = stateGround
	case 'c': // RIS
		*v.g = *newGrid(v.g.cols, v.g.rows)
		v.state = stateGround
	default:
		// '=', '>', and anything else we don't model: consume and ignore.
		v.state = stateGround
	}
}

func (v *VT) oscByte(b byte) {
	if v.sawEsc {
		v.sawEsc = false
		if b == '\\' {
			v.state = stateGround
			return
		}
		// Not a valid ST; keep collecting.
	}
	switch b {
	case 0x07:
		v.state = stateGround
	case 0x1b:
		v.sawEsc = true
	default:
		if len(v.oscBuf) < 4096 {
			v.oscBuf = append(v.oscBuf, b)
		}
	}
}

func (v *VT) skipByte(b byte) {
	if v.sawEsc {
		v.sawEsc = false
		if b == '\\' {
			v.state = stateGround
		}
		return
	}
	if b == 0x1b {
		v.sawEsc = true
	}
}

func (v *VT) csiByte(b byte) {
	switch {
	case b == '?' || b == '>' || b == '<' || b == '=':
		if len(v.params) == 0 && !v.haveCurParam {
			v.private = b
		}
	case b >= '0' && b <= '9':
		if !v.haveCurParam {
			v.haveCurParam = true
			v.curParam = 0
		}
		v.curParam = v.curParam*10 + int(b-'0')
	case b == ';' || b == ':':
		v.pushParam()
	case b >= 0x20 && b <= 0x2f:
		if len(v.intermediates) < 8 {
			v.intermediates = append(v.intermediates, b)
		}
	case b >= 0x40 && b <= 0x7e:
		v.pushParam()
		v.dispatchCSI(b)
		v.state = stateGround
	default:
		// Malformed; abort the sequence silently.
		v.state = stateGround
	}
}

func (v *VT) pushParam() {
	if v.haveCurParam {
		v.params = append(v.params, v.curParam)
	} else {
		v.params = append(v.params, -1)
	}
	v.curParam = 0
	v.haveCurParam = false
}

// param returns the i-th CSI parameter, or def if absent/defaulted (a bare
// ';' or missing trailing value means "use the default", per ECMA-48).
func (v *VT) param(i, def int) int {
	if i >= len(v.params) || v.params[i] < 0 {
		return def
	}
	return v.params[i]
}
