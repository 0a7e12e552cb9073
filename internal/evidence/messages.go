// File: internal/evidence/messages.go
// Description: Page status-message extraction. Drupal renders its messages
// area with role="status" and role="alert", so the extraction keys on ARIA
// roles rather than theme-specific markup.

package evidence

import (
	"context"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

// messagesJS returns every [role=status] and [role=alert] region's text in
// document order.
const messagesJS = `(() => {
	const els = Array.from(document.querySelectorAll('[role="status"], [role="alert"]'));
	return els.map(e => ({
		role: e.getAttribute('role'),
		text: (e.textContent || '').trim()
	})).filter(m => m.text !== '');
})()`

// ExtractMessages reads the page's status and alert messages.
func ExtractMessages(ctx context.Context, drv schemas.Driver) ([]schemas.StatusMessage, error) {
	var messages []schemas.StatusMessage
	if err := drv.Eval(ctx, messagesJS, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
