package schemas

import (
	"context"
	"time"
)

// -- Browser Driver Schemas --

// LoadState identifies a page readiness condition the driver can wait for.
type LoadState string

const (
	LoadDOMContentLoaded LoadState = "domcontentloaded"
	LoadComplete         LoadState = "load"
	LoadNetworkIdle      LoadState = "networkidle"
)

// LocatorKind selects the strategy used to resolve an element.
type LocatorKind string

const (
	LocatorLabel    LocatorKind = "label"
	LocatorRole     LocatorKind = "role"
	LocatorText     LocatorKind = "text"
	LocatorSelector LocatorKind = "selector"
)

// Locator describes how to find an element on the current page.
type Locator struct {
	Kind  LocatorKind `json:"kind"`
	Value string      `json:"value"`
	// Name narrows role locators by accessible name ("find role button --name 'Log in'").
	Name string `json:"name,omitempty"`
}

// ElementRef is an opaque handle to a resolved element. The driver that
// produced it is the only component allowed to interpret its contents.
type ElementRef string

// ElementAction is an interaction performed against a resolved element.
type ElementAction string

const (
	ActClick ElementAction = "click"
	ActFill  ElementAction = "fill"
	ActPress ElementAction = "press"
)

// AXNode is one node of an accessibility-tree snapshot.
type AXNode struct {
	Ref      string    `json:"ref"`
	Role     string    `json:"role"`
	Name     string    `json:"name"`
	Value    string    `json:"value,omitempty"`
	Children []*AXNode `json:"children,omitempty"`
}

// AXSnapshot is a point-in-time accessibility-tree capture.
type AXSnapshot struct {
	CapturedAt time.Time `json:"captured_at"`
	URL        string    `json:"url"`
	Root       *AXNode   `json:"root"`
}

// InteractiveRoles are the accessibility roles considered actionable by the
// fuzz controller.
var InteractiveRoles = map[string]bool{
	"button":   true,
	"link":     true,
	"textbox":  true,
	"checkbox": true,
	"radio":    true,
	"combobox": true,
	"tab":      true,
	"menuitem": true,
	"switch":   true,
}

// InteractiveElement is a flattened, actionable entry from an AXSnapshot.
type InteractiveElement struct {
	Ref  string `json:"ref"`
	Role string `json:"role"`
	Name string `json:"name"`
}

// InteractiveElements walks the snapshot in document order and returns every
// node whose role is interactive.
func (s *AXSnapshot) InteractiveElements() []InteractiveElement {
	if s == nil || s.Root == nil {
		return nil
	}
	var out []InteractiveElement
	var walk func(n *AXNode)
	walk = func(n *AXNode) {
		if n == nil {
			return
		}
		if InteractiveRoles[n.Role] {
			out = append(out, InteractiveElement{Ref: n.Ref, Role: n.Role, Name: n.Name})
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(s.Root)
	return out
}

// ConsoleMessage is a single entry from the browser console.
type ConsoleMessage struct {
	Level     string    `json:"level"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RuntimeError is an uncaught JS exception observed in the page.
type RuntimeError struct {
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Line      int64     `json:"line,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SnapshotOptions controls what an accessibility snapshot includes.
type SnapshotOptions struct {
	// InteractiveOnly prunes nodes that are neither interactive nor ancestors
	// of interactive nodes.
	InteractiveOnly bool
}

// Driver is the capability interface of the browser automation backend.
// Every blocking call takes a context; waits carry their own timeout and
// return a *TimeoutError when the condition does not arrive in budget.
type Driver interface {
	Open(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Snapshot(ctx context.Context, opts SnapshotOptions) (*AXSnapshot, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Find(ctx context.Context, loc Locator) (ElementRef, error)
	Act(ctx context.Context, ref ElementRef, action ElementAction, value string) error
	Text(ctx context.Context, loc Locator) (string, error)
	Eval(ctx context.Context, expr string, out any) error
	WaitLoad(ctx context.Context, state LoadState, timeout time.Duration) error
	WaitText(ctx context.Context, text string, timeout time.Duration) error
	Console(ctx context.Context) ([]ConsoleMessage, error)
	Errors(ctx context.Context) ([]RuntimeError, error)
	// Raw forwards an uninterpreted command line to the backend. It fails
	// loudly when the backend does not understand the command.
	Raw(ctx context.Context, line string) error
	Close(ctx context.Context) error
}
