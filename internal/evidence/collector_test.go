// File: internal/evidence/collector_test.go
package evidence

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/intentcheck/api/schemas"
	"github.com/xkilldash9x/intentcheck/internal/config"
)

// fakeDriver serves canned page state without a browser.
type fakeDriver struct {
	url      string
	snapshot *schemas.AXSnapshot
	console  []schemas.ConsoleMessage
	jsErrors []schemas.RuntimeError
	evalOut  map[string]string // expr substring -> JSON result
}

func (f *fakeDriver) Open(ctx context.Context, url string) error { f.url = url; return nil }
func (f *fakeDriver) CurrentURL(ctx context.Context) (string, error) {
	return f.url, nil
}
func (f *fakeDriver) Snapshot(ctx context.Context, opts schemas.SnapshotOptions) (*schemas.AXSnapshot, error) {
	return f.snapshot, nil
}
func (f *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png-bytes"), nil
}
func (f *fakeDriver) Find(ctx context.Context, loc schemas.Locator) (schemas.ElementRef, error) {
	return "loc:{}", nil
}
func (f *fakeDriver) Act(ctx context.Context, ref schemas.ElementRef, action schemas.ElementAction, value string) error {
	return nil
}
func (f *fakeDriver) Text(ctx context.Context, loc schemas.Locator) (string, error) {
	return "", nil
}
func (f *fakeDriver) Eval(ctx context.Context, expr string, out any) error {
	for key, res := range f.evalOut {
		if key != "" && strings.Contains(expr, key) {
			return jsonUnmarshal(res, out)
		}
	}
	return jsonUnmarshal("null", out)
}
func (f *fakeDriver) WaitLoad(ctx context.Context, state schemas.LoadState, timeout time.Duration) error {
	return nil
}
func (f *fakeDriver) WaitText(ctx context.Context, text string, timeout time.Duration) error {
	return nil
}
func (f *fakeDriver) Console(ctx context.Context) ([]schemas.ConsoleMessage, error) {
	return f.console, nil
}
func (f *fakeDriver) Errors(ctx context.Context) ([]schemas.RuntimeError, error) {
	return f.jsErrors, nil
}
func (f *fakeDriver) Raw(ctx context.Context, line string) error { return nil }
func (f *fakeDriver) Close(ctx context.Context) error            { return nil }

func jsonUnmarshal(data string, out any) error {
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(data), out)
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		url: "https://example.test/node/1",
		snapshot: &schemas.AXSnapshot{
			URL: "https://example.test/node/1",
			Root: &schemas.AXNode{
				Role: "RootWebArea",
				Children: []*schemas.AXNode{
					{Ref: "@e10", Role: "button", Name: "Save"},
				},
			},
		},
		console: []schemas.ConsoleMessage{{Level: "log", Text: "ready"}},
		evalOut: map[string]string{
			`[role="status"]`: `[{"role":"status","text":"Article created."}]`,
		},
	}
}

func testCollector(t *testing.T, drv schemas.Driver, outDir string, cfg config.EvidenceConfig) *Collector {
	t.Helper()
	return NewCollector(drv, cfg, config.TimeoutConfig{Probe: 10 * time.Second}, outDir, zap.NewNop())
}

func TestCaptureFullWritesAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	c := testCollector(t, newFakeDriver(), dir, config.EvidenceConfig{})

	bundle, err := c.Capture(context.Background(), "after_save", true)
	require.NoError(t, err)

	assert.Equal(t, "after_save", bundle.Name)
	assert.Equal(t, "https://example.test/node/1", bundle.URL)
	assert.True(t, bundle.Full)
	require.NotNil(t, bundle.Snapshot)
	require.Len(t, bundle.Messages, 1)
	assert.Equal(t, schemas.MessageStatus, bundle.Messages[0].Role)
	assert.Equal(t, "Article created.", bundle.Messages[0].Text)

	for _, name := range []string{
		"after_save.snapshot.json",
		"after_save.console.json",
		"after_save.errors.json",
		"after_save.screenshot.png",
		"after_save.drupal_messages.json",
	} {
		_, statErr := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, statErr, name)
	}
}

func TestCaptureSnapshotOnlySkipsFullArtifacts(t *testing.T) {
	dir := t.TempDir()
	c := testCollector(t, newFakeDriver(), dir, config.EvidenceConfig{})

	bundle, err := c.Capture(context.Background(), "mid", false)
	require.NoError(t, err)
	assert.False(t, bundle.Full)
	assert.Empty(t, bundle.Messages)
	assert.Empty(t, bundle.ScreenshotPath)

	_, statErr := os.Stat(filepath.Join(dir, "mid.screenshot.png"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "mid.drupal_messages.json"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(dir, "mid.snapshot.json"))
	assert.NoError(t, statErr)
}

func TestCaptureIsAtomicOnPersistFailure(t *testing.T) {
	dir := t.TempDir()
	// A directory squatting on the console artifact path forces the write to
	// fail after the snapshot artifact has already landed.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cp.console.json"), 0o755))

	c := testCollector(t, newFakeDriver(), dir, config.EvidenceConfig{})
	_, err := c.Capture(context.Background(), "cp", true)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "cp.snapshot.json"))
	assert.True(t, os.IsNotExist(statErr), "partial snapshot artifact must be removed")
	_, statErr = os.Stat(filepath.Join(dir, "cp.errors.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCaptureRunsProbes(t *testing.T) {
	dir := t.TempDir()
	cfg := config.EvidenceConfig{
		ProbeCmds: []string{"sh -c 'exit 3'"},
	}
	c := testCollector(t, newFakeDriver(), dir, cfg)

	bundle, err := c.Capture(context.Background(), "probed", true)
	require.NoError(t, err)
	require.Len(t, bundle.Probes, 1)
	assert.Equal(t, 3, bundle.Probes[0].ExitCode)
	assert.Empty(t, bundle.Probes[0].Err, "nonzero exit is evidence, not an error")

	_, statErr := os.Stat(filepath.Join(dir, "probed.probe.1.json"))
	assert.NoError(t, statErr)
}
