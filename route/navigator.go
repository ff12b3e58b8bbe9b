package route

import "sync"

// Navigator moves the host to another path.
type Navigator interface {
	// Replace navigates without leaving the current path in back/forward history.
	Replace(path string)
	// Redirect performs a full redirect.
	Redirect(path string)
}

// Entry is one navigation recorded by History.
type Entry struct {
	Action Action
	Path   string
}

// History records navigations instead of performing them. Hosts that answer a single
// request, like the HTTP middleware and the CLI, read the outcome from it afterwards.
type History struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Navigator = (*History)(nil)

func (h *History) Replace(path string) {
	h.push(Entry{Action: ActionReplace, Path: path})
}

func (h *History) Redirect(path string) {
	h.push(Entry{Action: ActionRedirect, Path: path})
}

func (h *History) push(e Entry) {
	h.mu.Lock()
	h.entries = append(h.entries, e)
	h.mu.Unlock()
}

func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Entry(nil), h.entries...)
}

// Last returns the most recent navigation, if any.
func (h *History) Last() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[len(h.entries)-1], true
}
