package route

import "fmt"

type Action int

const (
	// ActionNone means nothing is pending.
	ActionNone Action = iota
	// ActionWait means a recovered deep link is held until the auth state resolves.
	ActionWait
	// ActionReplace navigates in place, replacing the current history entry.
	ActionReplace
	// ActionRedirect is a full redirect.
	ActionRedirect
	ActionLoading
	ActionRender
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionWait:
		return "wait"
	case ActionReplace:
		return "replace"
	case ActionRedirect:
		return "redirect"
	case ActionLoading:
		return "loading"
	case ActionRender:
		return "render"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Decision is what the shell should do next. Target is the path to navigate to or render.
type Decision struct {
	Action Action
	Target string
}

// Navigates reports whether the decision moves the browser elsewhere.
func (d Decision) Navigates() bool {
	return d.Action == ActionReplace || d.Action == ActionRedirect
}

func (d Decision) String() string {
	if d.Target == "" {
		return d.Action.String()
	}
	return d.Action.String() + " " + d.Target
}
