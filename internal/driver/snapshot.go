// File: internal/driver/snapshot.go
// Description: Accessibility-tree capture. Snapshots are the page state the
// comparator and the fuzz controller reason about, so the shape must be
// stable across runs: nodes keep document order and refs derive from CDP
// backend node ids.

package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

// Snapshot captures the full accessibility tree of the current page.
func (s *Session) Snapshot(ctx context.Context, opts schemas.SnapshotOptions) (*schemas.AXSnapshot, error) {
	url, err := s.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}

	var nodes []*accessibility.Node
	capture := chromedp.ActionFunc(func(cctx context.Context) error {
		var derr error
		nodes, derr = accessibility.GetFullAXTree().Do(cctx)
		return derr
	})
	if err := s.run(ctx, capture); err != nil {
		return nil, &schemas.DriverError{Op: "snapshot", Err: err}
	}

	root := buildAXTree(nodes)
	if opts.InteractiveOnly {
		root = pruneNonInteractive(root)
	}

	return &schemas.AXSnapshot{
		CapturedAt: time.Now().UTC(),
		URL:        url,
		Root:       root,
	}, nil
}

// buildAXTree converts the flat CDP node list into a tree, dropping ignored
// nodes by promoting their children.
func buildAXTree(nodes []*accessibility.Node) *schemas.AXNode {
	if len(nodes) == 0 {
		return nil
	}
	byID := make(map[accessibility.NodeID]*accessibility.Node, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID] = n
	}

	var root *accessibility.Node
	for _, n := range nodes {
		if n.ParentID == "" {
			root = n
			break
		}
	}
	if root == nil {
		root = nodes[0]
	}

	var convert func(n *accessibility.Node) []*schemas.AXNode
	convert = func(n *accessibility.Node) []*schemas.AXNode {
		if n == nil {
			return nil
		}
		var children []*schemas.AXNode
		for _, childID := range n.ChildIDs {
			children = append(children, convert(byID[childID])...)
		}
		if n.Ignored {
			return children
		}
		return []*schemas.AXNode{{
			Ref:      axRef(n),
			Role:     axValueString(n.Role),
			Name:     axValueString(n.Name),
			Value:    axValueString(n.Value),
			Children: children,
		}}
	}

	converted := convert(root)
	if len(converted) == 0 {
		return nil
	}
	if len(converted) == 1 {
		return converted[0]
	}
	// The root itself was ignored; wrap its surviving children.
	return &schemas.AXNode{Role: "RootWebArea", Children: converted}
}

func axRef(n *accessibility.Node) string {
	if n.BackendDOMNodeID != 0 {
		return fmt.Sprintf("@e%d", n.BackendDOMNodeID)
	}
	return "@a" + string(n.NodeID)
}

func axValueString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	return strings.Trim(string(v.Value), `"`)
}

// pruneNonInteractive keeps interactive nodes and their ancestors only.
func pruneNonInteractive(root *schemas.AXNode) *schemas.AXNode {
	if root == nil {
		return nil
	}
	var prune func(n *schemas.AXNode) *schemas.AXNode
	prune = func(n *schemas.AXNode) *schemas.AXNode {
		if n == nil {
			return nil
		}
		var kept []*schemas.AXNode
		for _, c := range n.Children {
			if p := prune(c); p != nil {
				kept = append(kept, p)
			}
		}
		if !schemas.InteractiveRoles[n.Role] && len(kept) == 0 {
			return nil
		}
		clone := *n
		clone.Children = kept
		return &clone
	}
	pruned := prune(root)
	if pruned == nil {
		// Keep the root so callers always get a tree shape back.
		clone := *root
		clone.Children = nil
		return &clone
	}
	return pruned
}
