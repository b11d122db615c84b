package term

// ColorKind distinguishes which of Color's fields is meaningful.
type ColorKind uint8

const (
	ColorDefault ColorKind = iota
	ColorIndexed
	ColorRGB
)

// Color is a terminal color: either "use the default", a 256-color
// palette index, or a 24-bit RGB triple (SGR 38/48;2;r;g;b).
type Color struct {
	Kind  ColorKind
	Index uint8
	R, G, B uint8
}

// Style holds the SGR-settable attributes of a single cell: foreground and
// background color, plus the boolean attributes a conforming terminal
// tracks per cell (bold, faint, italic, underline, strikethrough, blink,
// inverse).
type Style struct {
	FG, BG        Color
	Bold          bool
	Faint         bool
	Italic        bool
	Underline     bool
	Strikethrough bool
	Blink         bool
	Inverse       bool
}

// Default is the zero-value style: default colors, no attributes.
var Default = Style{}
