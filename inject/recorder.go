package inject

import "sync"

type Injection struct {
	Typed     string
	Clipboard string
}

// Recorder is an in-memory Sink. It mimics the clipboard: after TypeText
// the clipboard holds the fallback if one was given, else the typed text.
type Recorder struct {
	Err error

	mu        sync.Mutex
	typed     []Injection
	copies    []string
	clipboard string
}

func (r *Recorder) TypeText(text, clipboardFallback string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.typed = append(r.typed, Injection{Typed: text, Clipboard: clipboardFallback})
	if clipboardFallback != "" {
		r.clipboard = clipboardFallback
	} else {
		r.clipboard = text
	}
	return nil
}

func (r *Recorder) CopyToClipboard(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.copies = append(r.copies, text)
	r.clipboard = text
	return nil
}

func (r *Recorder) Typed() []Injection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Injection(nil), r.typed...)
}

// TypedText concatenates everything typed so far.
func (r *Recorder) TypedText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s string
	for _, in := range r.typed {
		s += in.Typed
	}
	return s
}

func (r *Recorder) Copies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.copies...)
}

func (r *Recorder) Clipboard() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clipboard
}
