// File: internal/scenario/parser_test.go
package scenario

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/intentcheck/api/schemas"
)

func TestParseBasicScript(t *testing.T) {
	script := `
# Login flow
open /user/login
find label Username fill admin
find label Password fill secret
find role button click --name "Log in"
wait --load networkidle
checkpoint logged_in
`
	instrs, err := ParseString(script)
	require.NoError(t, err)
	require.Len(t, instrs, 6)

	assert.Equal(t, KindOpen, instrs[0].Kind)
	assert.Equal(t, "/user/login", instrs[0].Path)
	assert.Equal(t, 3, instrs[0].Line)

	// `find ...` is not a parser keyword; it rides through raw.
	assert.Equal(t, KindRaw, instrs[1].Kind)
	assert.Equal(t, `find label Username fill admin`, instrs[1].Raw)

	assert.Equal(t, KindWait, instrs[4].Kind)
	assert.Equal(t, WaitLoad, instrs[4].WaitMode)
	assert.Equal(t, schemas.LoadNetworkIdle, instrs[4].LoadState)

	assert.Equal(t, KindCheckpoint, instrs[5].Kind)
	assert.Equal(t, "logged_in", instrs[5].Name)
}

func TestParseIsDeterministic(t *testing.T) {
	script := `
open /node/1
wait 2.5
snapshot before_edit
screenshot page_one
assert-url --contains /node/1
`
	first, err := ParseString(script)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := ParseString(script)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParseWaitForms(t *testing.T) {
	tests := []struct {
		name string
		line string
		mode WaitMode
		chk  func(t *testing.T, in Instruction)
	}{
		{
			name: "bare defaults to one second",
			line: "wait",
			mode: WaitSleep,
			chk: func(t *testing.T, in Instruction) {
				assert.Equal(t, 1.0, in.Seconds)
			},
		},
		{
			name: "numeric sleep",
			line: "wait 0.25",
			mode: WaitSleep,
			chk: func(t *testing.T, in Instruction) {
				assert.Equal(t, 0.25, in.Seconds)
			},
		},
		{
			name: "load state",
			line: "wait --load load",
			mode: WaitLoad,
			chk: func(t *testing.T, in Instruction) {
				assert.Equal(t, schemas.LoadComplete, in.LoadState)
			},
		},
		{
			name: "text",
			line: `wait --text "Welcome back"`,
			mode: WaitText,
			chk: func(t *testing.T, in Instruction) {
				assert.Equal(t, "Welcome back", in.Text)
			},
		},
		{
			name: "bare selector",
			line: "wait .messages--status",
			mode: WaitSelector,
			chk: func(t *testing.T, in Instruction) {
				assert.Equal(t, schemas.LocatorSelector, in.Locator.Kind)
				assert.Equal(t, ".messages--status", in.Locator.Value)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			instrs, err := ParseString(tc.line)
			require.NoError(t, err)
			require.Len(t, instrs, 1)
			assert.Equal(t, KindWait, instrs[0].Kind)
			assert.Equal(t, tc.mode, instrs[0].WaitMode)
			tc.chk(t, instrs[0])
		})
	}
}

func TestParseWaitRejectsNegative(t *testing.T) {
	_, err := ParseString("wait -3")
	var perr *schemas.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Line)
}

func TestParseExpectForms(t *testing.T) {
	instrs, err := ParseString(`expect text Saved successfully
expect selector .node-edit-form
expect --text "Access denied"`)
	require.NoError(t, err)
	require.Len(t, instrs, 3)

	assert.Equal(t, KindExpect, instrs[0].Kind)
	assert.Equal(t, WaitText, instrs[0].WaitMode)
	assert.Equal(t, "Saved successfully", instrs[0].Text)

	assert.Equal(t, WaitSelector, instrs[1].WaitMode)
	assert.Equal(t, ".node-edit-form", instrs[1].Locator.Value)

	assert.Equal(t, WaitText, instrs[2].WaitMode)
	assert.Equal(t, "Access denied", instrs[2].Text)
}

func TestParseExpectRequiresArgument(t *testing.T) {
	_, err := ParseString("expect")
	var perr *schemas.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Reason, "argument")
}

func TestParseScreenshotAppendsExtension(t *testing.T) {
	instrs, err := ParseString("screenshot landing\nscreenshot final.png")
	require.NoError(t, err)
	assert.Equal(t, "landing.png", instrs[0].Name)
	assert.Equal(t, "final.png", instrs[1].Name)
}

func TestParseAssertions(t *testing.T) {
	script := `
assert-present --text "Article created"
assert-absent --id no_leak --severity warn --text "sk-live"
assert-no-js-errors
assert-no-drupal-alerts
assert-url --contains /admin/content
assert-count --selector "table tbody tr" --eq 3
`
	instrs, err := ParseString(script)
	require.NoError(t, err)
	require.Len(t, instrs, 6)
	for _, in := range instrs {
		require.Equal(t, KindAssert, in.Kind)
		require.NotNil(t, in.Assert)
	}

	assert.Equal(t, schemas.AssertTextPresent, instrs[0].Assert.Type)
	assert.Equal(t, []string{"Article created"}, instrs[0].Assert.Patterns)
	assert.Equal(t, schemas.SeverityFail, instrs[0].Assert.Severity)

	assert.Equal(t, schemas.AssertTextAbsent, instrs[1].Assert.Type)
	assert.Equal(t, "no_leak", instrs[1].Assert.ID)
	assert.Equal(t, schemas.SeverityWarn, instrs[1].Assert.Severity)

	assert.Equal(t, schemas.AssertNoConsoleErrors, instrs[2].Assert.Type)

	assert.Equal(t, schemas.AssertNoPageMessages, instrs[3].Assert.Type)
	assert.Equal(t, schemas.MessageAlert, instrs[3].Assert.Level)

	assert.Equal(t, schemas.AssertURLContains, instrs[4].Assert.Type)
	assert.Equal(t, "/admin/content", instrs[4].Assert.Contains)

	assert.Equal(t, schemas.AssertCountEquals, instrs[5].Assert.Type)
	assert.Equal(t, "table tbody tr", instrs[5].Assert.Selector)
	assert.Equal(t, 3, instrs[5].Assert.Count)
}

func TestParseAssertErrors(t *testing.T) {
	tests := []struct {
		line   string
		reason string
	}{
		{"assert-present", "--text or --selector"},
		{"assert-url", "--contains"},
		{"assert-count --selector tr", "--selector and --eq"},
		{"assert-count --selector tr --eq many", "integer"},
		{"assert-present --severity shrug --text x", "severity"},
		// Stray arguments are typos, not noise to discard.
		{"assert-present --text foo bar", "unexpected tokens"},
		{"assert-url --contains /x extra", "unexpected tokens"},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			_, err := ParseString(tc.line)
			var perr *schemas.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Reason, tc.reason)
		})
	}
}

func TestParseExtract(t *testing.T) {
	instrs, err := ParseString(`extract eval node_count document.querySelectorAll('article').length
extract text page_title label Title`)
	require.NoError(t, err)
	require.Len(t, instrs, 2)

	assert.Equal(t, KindExtract, instrs[0].Kind)
	assert.Equal(t, "eval", instrs[0].ExtractKind)
	assert.Equal(t, "node_count", instrs[0].Name)
	assert.Contains(t, instrs[0].Expr, "querySelectorAll")

	assert.Equal(t, "text", instrs[1].ExtractKind)
	assert.Equal(t, "page_title", instrs[1].Name)
	assert.Equal(t, schemas.LocatorLabel, instrs[1].Locator.Kind)
	assert.Equal(t, "Title", instrs[1].Locator.Value)
}

func TestParseProbe(t *testing.T) {
	instrs, err := ParseString(`probe shell watchdog -- drush watchdog:show --count=20
probe drush cache -- cr`)
	require.NoError(t, err)
	require.Len(t, instrs, 2)

	assert.Equal(t, KindProbe, instrs[0].Kind)
	assert.Equal(t, "watchdog", instrs[0].Name)
	assert.Equal(t, []string{"drush", "watchdog:show", "--count=20"}, instrs[0].ProbeArgv)

	assert.Equal(t, "cache", instrs[1].Name)
	assert.Equal(t, []string{"drush", "cr"}, instrs[1].ProbeArgv)
}

func TestParseErrorCarriesLineAndContent(t *testing.T) {
	script := "open /\ncheckpoint first\nopen"
	_, err := ParseString(script)
	var perr *schemas.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, "open", perr.Content)
	assert.True(t, strings.Contains(err.Error(), "line 3"))
}

func TestParseNamesStripQuotes(t *testing.T) {
	instrs, err := ParseString(`checkpoint "before"
snapshot "after save"
screenshot "shot"`)
	require.NoError(t, err)
	require.Len(t, instrs, 3)
	assert.Equal(t, "before", instrs[0].Name)
	assert.Equal(t, "after save", instrs[1].Name)
	assert.Equal(t, "shot.png", instrs[2].Name)
}

func TestParseDuplicateCheckpointNamesAccepted(t *testing.T) {
	// Name conflicts surface at run time, not parse time.
	instrs, err := ParseString("checkpoint same\ncheckpoint same")
	require.NoError(t, err)
	require.Len(t, instrs, 2)
}

func TestSplitTokensQuoting(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`a b c`, []string{"a", "b", "c"}},
		{`fill "hello world"`, []string{"fill", "hello world"}},
		{`fill 'it''s'`, []string{"fill", "its"}},
		{`a "b \"c\" d"`, []string{"a", `b "c" d`}},
		{`a\ b`, []string{"a b"}},
		{``, nil},
	}
	for _, tc := range tests {
		got, err := splitTokens(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := splitTokens(`unterminated "quote`)
	require.Error(t, err)
	_, err = splitTokens(`trailing \`)
	require.Error(t, err)
}

func TestPopFlag(t *testing.T) {
	rest, val, ok, err := popFlag([]string{"x", "--name", "Log in", "y"}, "--name")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Log in", val)
	assert.Equal(t, []string{"x", "y"}, rest)

	_, _, ok, err = popFlag([]string{"x"}, "--name")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = popFlag([]string{"--name"}, "--name")
	require.Error(t, err)
}
