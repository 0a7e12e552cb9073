// File: internal/driver/locate.go
// Description: Element resolution and interaction. Locator-derived refs
// re-resolve inside the page at action time; accessibility refs ("@e<id>")
// resolve through CDP backend node ids so fuzz actions hit the exact node a
// snapshot reported.

package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

const locRefPrefix = "loc:"

// resolverJS defines __icResolve(kind, value, name) in an IIFE scope. It
// returns the first matching element in document order, or null.
const resolverJS = `
(function() {
	function norm(s) { return (s || '').trim().replace(/\s+/g, ' '); }
	function nameOf(el) {
		return norm(el.getAttribute('aria-label') || el.value || el.textContent);
	}
	function matchesName(el, name) {
		if (!name) return true;
		return nameOf(el).toLowerCase().includes(name.toLowerCase());
	}
	var roleSelectors = {
		button: 'button, input[type=button], input[type=submit], [role=button]',
		link: 'a[href], [role=link]',
		textbox: 'input:not([type]), input[type=text], input[type=email], input[type=password], input[type=search], input[type=url], input[type=tel], input[type=number], textarea, [role=textbox]',
		checkbox: 'input[type=checkbox], [role=checkbox]',
		radio: 'input[type=radio], [role=radio]',
		combobox: 'select, [role=combobox]',
		tab: '[role=tab]',
		menuitem: '[role=menuitem]',
		switch: '[role=switch]'
	};
	return function(kind, value, name) {
		if (kind === 'selector') {
			return document.querySelector(value);
		}
		if (kind === 'label') {
			var labels = document.querySelectorAll('label');
			var want = value.toLowerCase();
			for (var i = 0; i < labels.length; i++) {
				var l = labels[i];
				if (!norm(l.textContent).toLowerCase().includes(want)) continue;
				if (l.htmlFor) {
					var byFor = document.getElementById(l.htmlFor);
					if (byFor) return byFor;
				}
				var nested = l.querySelector('input, textarea, select');
				if (nested) return nested;
			}
			var all = document.querySelectorAll('input, textarea, select');
			for (var j = 0; j < all.length; j++) {
				var al = all[j].getAttribute('aria-label');
				if (al && norm(al).toLowerCase().includes(want)) return all[j];
			}
			return null;
		}
		if (kind === 'role') {
			var sel = roleSelectors[value] || '[role=' + value + ']';
			var cands = document.querySelectorAll(sel);
			for (var k = 0; k < cands.length; k++) {
				if (matchesName(cands[k], name)) return cands[k];
			}
			return null;
		}
		if (kind === 'text') {
			var walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
			var node;
			while ((node = walker.nextNode())) {
				if (norm(node.textContent).includes(value)) return node.parentElement;
			}
			return null;
		}
		return null;
	};
})()`

// Find resolves a locator to an opaque re-resolvable ref. The element must
// exist now; the ref re-resolves at each later use.
func (s *Session) Find(ctx context.Context, loc schemas.Locator) (schemas.ElementRef, error) {
	expr := fmt.Sprintf("%s(%s, %s, %s) !== null",
		resolverJS, jsString(string(loc.Kind)), jsString(loc.Value), jsString(loc.Name))
	var found bool
	if err := s.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return "", &schemas.DriverError{Op: fmt.Sprintf("find %s %q", loc.Kind, loc.Value), Err: err}
	}
	if !found {
		return "", &schemas.DriverError{
			Op:  fmt.Sprintf("find %s %q", loc.Kind, loc.Value),
			Err: fmt.Errorf("no matching element"),
		}
	}
	encoded, err := json.Marshal(loc)
	if err != nil {
		return "", &schemas.DriverError{Op: "find", Err: err}
	}
	return schemas.ElementRef(locRefPrefix + string(encoded)), nil
}

// Text returns the trimmed text content (or form value) of the element the
// locator resolves to.
func (s *Session) Text(ctx context.Context, loc schemas.Locator) (string, error) {
	expr := fmt.Sprintf(`(function() {
		var el = %s(%s, %s, %s);
		if (!el) return null;
		if (el.value !== undefined && el.value !== '') return String(el.value);
		return (el.innerText || el.textContent || '').trim();
	})()`, resolverJS, jsString(string(loc.Kind)), jsString(loc.Value), jsString(loc.Name))

	var text *string
	if err := s.run(ctx, chromedp.Evaluate(expr, &text)); err != nil {
		return "", &schemas.DriverError{Op: fmt.Sprintf("text %s %q", loc.Kind, loc.Value), Err: err}
	}
	if text == nil {
		return "", &schemas.DriverError{
			Op:  fmt.Sprintf("text %s %q", loc.Kind, loc.Value),
			Err: fmt.Errorf("no matching element"),
		}
	}
	return *text, nil
}

// Act performs click/fill/press against a previously resolved ref.
func (s *Session) Act(ctx context.Context, ref schemas.ElementRef, action schemas.ElementAction, value string) error {
	op := fmt.Sprintf("%s %s", action, ref)
	switch {
	case strings.HasPrefix(string(ref), locRefPrefix):
		return s.actOnLocator(ctx, op, string(ref)[len(locRefPrefix):], action, value)
	case strings.HasPrefix(string(ref), "@e"):
		return s.actOnBackendNode(ctx, op, string(ref)[2:], action, value)
	default:
		return &schemas.DriverError{Op: op, Err: fmt.Errorf("unrecognized element ref")}
	}
}

func actionJS(action schemas.ElementAction) (string, error) {
	switch action {
	case schemas.ActClick:
		return `el.click();`, nil
	case schemas.ActFill:
		return `el.focus();
			el.value = __icValue;
			el.dispatchEvent(new Event('input', {bubbles: true}));
			el.dispatchEvent(new Event('change', {bubbles: true}));`, nil
	case schemas.ActPress:
		return `var opts = {key: __icValue, bubbles: true, cancelable: true};
			el.dispatchEvent(new KeyboardEvent('keydown', opts));
			el.dispatchEvent(new KeyboardEvent('keyup', opts));
			if (__icValue === 'Enter' && el.form) el.form.requestSubmit();`, nil
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

func (s *Session) actOnLocator(ctx context.Context, op, encoded string, action schemas.ElementAction, value string) error {
	var loc schemas.Locator
	if err := json.Unmarshal([]byte(encoded), &loc); err != nil {
		return &schemas.DriverError{Op: op, Err: fmt.Errorf("corrupt element ref: %w", err)}
	}
	body, err := actionJS(action)
	if err != nil {
		return &schemas.DriverError{Op: op, Err: err}
	}
	expr := fmt.Sprintf(`(function() {
		var __icValue = %s;
		var el = %s(%s, %s, %s);
		if (!el) return 'stale element: no match';
		%s
		return '';
	})()`, jsString(value), resolverJS,
		jsString(string(loc.Kind)), jsString(loc.Value), jsString(loc.Name), body)

	var failure string
	if err := s.run(ctx, chromedp.Evaluate(expr, &failure)); err != nil {
		return &schemas.DriverError{Op: op, Err: err}
	}
	if failure != "" {
		return &schemas.DriverError{Op: op, Err: fmt.Errorf("%s", failure)}
	}
	return nil
}

func (s *Session) actOnBackendNode(ctx context.Context, op, idStr string, action schemas.ElementAction, value string) error {
	backendID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return &schemas.DriverError{Op: op, Err: fmt.Errorf("corrupt element ref: %w", err)}
	}
	body, err := actionJS(action)
	if err != nil {
		return &schemas.DriverError{Op: op, Err: err}
	}
	decl := fmt.Sprintf(`function(__icValue) { var el = this; %s }`, body)

	act := chromedp.ActionFunc(func(cctx context.Context) error {
		obj, rerr := dom.ResolveNode().
			WithBackendNodeID(cdp.BackendNodeID(backendID)).
			Do(cctx)
		if rerr != nil {
			return fmt.Errorf("resolve node: %w", rerr)
		}
		arg, merr := json.Marshal(value)
		if merr != nil {
			return merr
		}
		_, exc, cerr := runtime.CallFunctionOn(decl).
			WithObjectID(obj.ObjectID).
			WithArguments([]*runtime.CallArgument{{Value: arg}}).
			Do(cctx)
		if cerr != nil {
			return cerr
		}
		if exc != nil {
			return fmt.Errorf("exception in action: %s", exc.Text)
		}
		return nil
	})
	if err := s.run(ctx, act); err != nil {
		return &schemas.DriverError{Op: op, Err: err}
	}
	return nil
}
