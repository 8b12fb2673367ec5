package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/registry"
)

type fakeBackend struct {
	name  string
	err   error
	calls int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Convert(ctx context.Context, inputPath, outputDir string, target format.Format) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	out := filepath.Join(outputDir, format.BaseName(inputPath)+"."+string(target))
	return out, os.WriteFile(out, []byte("converted"), 0o644)
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveConversion(backend, source, target, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func testRegistry() *registry.Registry {
	return registry.New(
		registry.Descriptor{Backend: "image", Sources: format.NewSet(format.PNG), Targets: format.NewSet(format.JPG), Priority: 1},
	)
}

func writeInput(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("input"), 0o644))
	return path
}

func TestNewDispatcherRequiresEveryBackend(t *testing.T) {
	_, err := NewDispatcher(testRegistry(), nil)
	assert.ErrorContains(t, err, `no implementation for backend "image"`)

	_, err = NewDispatcher(testRegistry(), []Backend{&fakeBackend{name: "image"}, &fakeBackend{name: "image"}})
	assert.ErrorContains(t, err, "duplicate backend")
}

func TestDispatchSuccess(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	input := writeInput(t, dir, "photo.PNG")

	backend := &fakeBackend{name: "image"}
	obs := &recordingObserver{}
	d, err := NewDispatcher(testRegistry(), []Backend{backend}, WithObserver(obs))
	require.NoError(t, err)

	out, err := d.Dispatch(context.Background(), input, outDir, ".JPG")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "photo.jpg"), out)
	assert.FileExists(t, out)
	assert.FileExists(t, input)
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, []string{"success"}, obs.outcomes)
}

func TestDispatchUnsupportedNeverCallsBackend(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	input := writeInput(t, dir, "photo.png")

	backend := &fakeBackend{name: "image"}
	obs := &recordingObserver{}
	d, err := NewDispatcher(testRegistry(), []Backend{backend}, WithObserver(obs))
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), input, outDir, "mp3")

	var unsupported *UnsupportedConversionError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, format.PNG, unsupported.Source)
	assert.Equal(t, format.MP3, unsupported.Target)
	assert.Equal(t, 0, backend.calls)
	assert.Equal(t, []string{string(KindUnsupported)}, obs.outcomes)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispatchEmptyTarget(t *testing.T) {
	backend := &fakeBackend{name: "image"}
	d, err := NewDispatcher(testRegistry(), []Backend{backend})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), "photo.png", t.TempDir(), "  ")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 0, backend.calls)
}

func TestDispatchMissingInput(t *testing.T) {
	backend := &fakeBackend{name: "image"}
	d, err := NewDispatcher(testRegistry(), []Backend{backend})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), filepath.Join(t.TempDir(), "gone.png"), t.TempDir(), "jpg")

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "gone.png", nf.Name)
	assert.Equal(t, 0, backend.calls)
}

func TestDispatchWrapsBackendFailure(t *testing.T) {
	input := writeInput(t, t.TempDir(), "photo.png")
	cause := errors.New("decoder exploded")

	tests := []struct {
		name string
		err  error
	}{
		{"plain error", cause},
		{"already tagged", NewBackendError("image", cause)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			d, err := NewDispatcher(testRegistry(), []Backend{&fakeBackend{name: "image", err: tt.err}}, WithObserver(obs))
			require.NoError(t, err)

			_, err = d.Dispatch(context.Background(), input, t.TempDir(), "jpg")

			var berr *BackendExecutionError
			require.ErrorAs(t, err, &berr)
			assert.Equal(t, "image", berr.Backend)
			assert.Equal(t, format.PNG, berr.Source)
			assert.Equal(t, format.JPG, berr.Target)
			assert.Same(t, cause, berr.Err)
			assert.Equal(t, KindBackend, KindOf(err))
			assert.Equal(t, []string{string(KindBackend)}, obs.outcomes)
		})
	}
}

type blockingBackend struct{}

func (blockingBackend) Name() string { return "image" }

func (blockingBackend) Convert(ctx context.Context, _, _ string, _ format.Format) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestDispatchTimeout(t *testing.T) {
	input := writeInput(t, t.TempDir(), "photo.png")
	d, err := NewDispatcher(testRegistry(), []Backend{blockingBackend{}}, WithTimeout(10*time.Millisecond))
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), input, t.TempDir(), "jpg")
	assert.ErrorIs(t, err, ErrBackend)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPlan(t *testing.T) {
	d, err := NewDispatcher(testRegistry(), []Backend{&fakeBackend{name: "image"}})
	require.NoError(t, err)

	plan, err := d.Plan("dir/photo.png", "JPG")
	require.NoError(t, err)
	assert.Equal(t, Plan{Source: format.PNG, Target: format.JPG, Backend: "image"}, plan)
}
