package lal

import "github.com/lal-go/lal/abi"

// Text is an engine text buffer owned by the host. Release destroys it;
// IntoRaw hands it to the engine instead.
type Text struct {
	lib *Library
	raw abi.Text
}

// NewText allocates an owned engine text holding s.
func (l *Library) NewText(s string) (*Text, error) {
	var raw abi.Text
	l.engine.TextFromUTF8(s, &raw)
	if err := l.check(); err != nil {
		return nil, err
	}
	return &Text{lib: l, raw: raw}, nil
}

// TakeText adopts raw if the engine marked it as allocated. Borrowed texts
// are refused; copy them with ViewText instead.
func TakeText(l *Library, raw abi.Text) (*Text, bool) {
	if raw.IsAllocated == 0 {
		return nil, false
	}
	return &Text{lib: l, raw: raw}, true
}

// String copies the text into a Go string.
func (t *Text) String() string {
	return ViewText(&t.raw).String()
}

// View borrows the text. The view is invalid once t is released.
func (t *Text) View() TextView {
	return ViewText(&t.raw)
}

// IntoRaw transfers ownership of the buffer to the caller. t is empty
// afterwards and Release becomes a no-op.
func (t *Text) IntoRaw() abi.Text {
	raw := t.raw
	t.raw = abi.Text{}
	return raw
}

// Release destroys the buffer. Further calls do nothing. The engine
// refusing to destroy an owned buffer is fatal.
func (t *Text) Release() {
	if t == nil || t.raw.IsAllocated == 0 {
		return
	}
	raw := t.raw
	t.raw = abi.Text{}
	t.lib.engine.DestroyText(&raw)
	t.lib.logAndAbort("DestroyText")
}

// TextView is a read-only view of a text buffer owned by someone else. It
// must not outlive the call that produced the buffer.
type TextView struct {
	chars []uint32
}

// ViewText borrows raw.
func ViewText(raw *abi.Text) TextView {
	return TextView{chars: abi.Runes(raw)}
}

// Len returns the number of code points.
func (v TextView) Len() int { return len(v.chars) }

// Runes copies the code points.
func (v TextView) Runes() []rune {
	out := make([]rune, len(v.chars))
	for i, c := range v.chars {
		out[i] = rune(c)
	}
	return out
}

func (v TextView) String() string {
	return string(v.Runes())
}
