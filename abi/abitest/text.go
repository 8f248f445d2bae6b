package abitest

import (
	"unicode/utf8"

	"github.com/lal-go/lal/abi"
)

// TextFromUTF8 implements abi.Engine.
func (e *Engine) TextFromUTF8(s string, out *abi.Text) {
	if !e.enter("TextFromUTF8") {
		*out = abi.Text{}
		e.mu.Unlock()
		return
	}
	defer e.mu.Unlock()
	if !utf8.ValidString(s) {
		*out = abi.Text{}
		e.raise(abi.ExceptionInvalidInput, "invalid UTF-8 input")
		return
	}
	*out = e.newTextLocked([]rune(s))
}

func (e *Engine) newTextLocked(runes []rune) abi.Text {
	// Empty texts still get a backing cell so the allocation can be tracked.
	buf := make([]uint32, len(runes)+1)
	for i, r := range runes {
		buf[i] = uint32(r)
	}
	e.texts[&buf[0]] = struct{}{}
	e.stats.TextsAllocated++
	return abi.Text{Chars: &buf[0], Length: uintptr(len(runes)), IsAllocated: 1}
}

// DestroyText implements abi.Engine. Destroying a borrowed text is a no-op.
func (e *Engine) DestroyText(t *abi.Text) {
	if !e.enter("DestroyText") {
		e.mu.Unlock()
		return
	}
	defer e.mu.Unlock()
	if t == nil || t.IsAllocated == 0 {
		return
	}
	e.destroyTextLocked(t)
}

func (e *Engine) destroyTextLocked(t *abi.Text) bool {
	if _, ok := e.texts[t.Chars]; !ok {
		e.violate("destroy of unknown or already destroyed text")
		e.raise(abi.ExceptionPreconditionFailure, "invalid text buffer")
		return false
	}
	delete(e.texts, t.Chars)
	e.stats.TextsDestroyed++
	return true
}

// adoptText takes ownership of a text written by a host callback: its
// contents are copied and the buffer destroyed. Borrowed or foreign buffers
// are violations since the engine could never free them.
func (e *Engine) adoptText(t *abi.Text, what string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := decodeText(t)
	if t.Chars == nil {
		return s
	}
	if t.IsAllocated == 0 {
		e.violate("%s was not an owned buffer", what)
		return s
	}
	if _, ok := e.texts[t.Chars]; !ok {
		e.violate("%s was not allocated by the engine", what)
		return s
	}
	delete(e.texts, t.Chars)
	e.stats.TextsDestroyed++
	return s
}

func decodeText(t *abi.Text) string {
	cps := abi.Runes(t)
	runes := make([]rune, len(cps))
	for i, c := range cps {
		runes[i] = rune(c)
	}
	return string(runes)
}

// borrowedText exposes runes owned by the engine without transferring them.
func borrowedText(buf []uint32) abi.Text {
	if len(buf) == 0 {
		return abi.Text{}
	}
	return abi.Text{Chars: &buf[0], Length: uintptr(len(buf))}
}

func codePoints(s string) []uint32 {
	out := make([]uint32, 0, len(s))
	for _, r := range s {
		out = append(out, uint32(r))
	}
	return out
}
