package files_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavel-fokin/file-converter/internal/convert"
	"github.com/pavel-fokin/file-converter/internal/files"
	"github.com/pavel-fokin/file-converter/internal/format"
	"github.com/pavel-fokin/file-converter/internal/fs"
)

// fakeDispatcher writes <base>.<target> through the shared afero filesystem.
type fakeDispatcher struct {
	fsys   afero.Fs
	err    error
	calls  int
	ctxErr error
}

func (d *fakeDispatcher) Plan(inputPath, target string) (convert.Plan, error) {
	return convert.Plan{Source: format.FromFilename(inputPath), Target: format.Normalize(target), Backend: "fake"}, nil
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, inputPath, outputDir, target string) (string, error) {
	d.calls++
	d.ctxErr = ctx.Err()
	if d.err != nil {
		return "", d.err
	}
	out := filepath.Join(outputDir, format.BaseName(inputPath)+"."+string(format.Normalize(target)))
	return out, afero.WriteFile(d.fsys, out, []byte("converted"), 0o644)
}

type memJournal struct {
	mu      sync.Mutex
	entries []*files.Conversion
	pruned  []time.Time
	err     error
}

func (j *memJournal) Record(ctx context.Context, c *files.Conversion) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, c)
	return nil
}

func (j *memJournal) Recent(ctx context.Context, limit int) ([]*files.Conversion, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) < limit {
		limit = len(j.entries)
	}
	return j.entries[:limit], nil
}

func (j *memJournal) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pruned = append(j.pruned, t)
	return 0, nil
}

type fixture struct {
	fsys       afero.Fs
	store      *fs.Storage
	dispatcher *fakeDispatcher
	journal    *memJournal
	svc        *files.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fsys := afero.NewMemMapFs()
	store := fs.NewStorage(fsys, "/srv/uploads", "/srv/converted", 1<<20)
	require.NoError(t, store.Init())

	f := &fixture{
		fsys:       fsys,
		store:      store,
		dispatcher: &fakeDispatcher{fsys: fsys},
		journal:    &memJournal{},
	}
	f.svc = files.NewService(store, f.journal, f.dispatcher, format.NewMatrix(), 10*time.Minute)
	return f
}

func TestUpload(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Upload(context.Background(), &files.UploadRequest{
		Name:    "../My Photo.PNG",
		Content: strings.NewReader("png bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, "My_Photo.PNG", res.Filename)
	assert.Equal(t, int64(9), res.Size)
	assert.ElementsMatch(t, []format.Format{"bmp", "gif", "jpg", "jpeg", "pdf", "tiff", "webp"}, res.SupportedFormats)
}

func TestUploadUnknownFormatHasNoTargets(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Upload(context.Background(), &files.UploadRequest{Name: "data.xyz", Content: strings.NewReader("x")})
	require.NoError(t, err)
	assert.NotNil(t, res.SupportedFormats)
	assert.Empty(t, res.SupportedFormats)
}

func TestUploadEmptyName(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Upload(context.Background(), &files.UploadRequest{Name: "日本", Content: strings.NewReader("x")})
	assert.ErrorIs(t, err, convert.ErrValidation)
}

func TestUploadSweepsFirst(t *testing.T) {
	f := newFixture(t)

	stale := "/srv/converted/old.jpg"
	require.NoError(t, afero.WriteFile(f.fsys, stale, []byte("x"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, f.fsys.Chtimes(stale, old, old))

	_, err := f.svc.Upload(context.Background(), &files.UploadRequest{Name: "a.png", Content: strings.NewReader("x")})
	require.NoError(t, err)

	exists, _ := afero.Exists(f.fsys, stale)
	assert.False(t, exists)
	assert.Len(t, f.journal.pruned, 1)
}

func TestConvert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, &files.UploadRequest{Name: "photo.png", Content: strings.NewReader("x")})
	require.NoError(t, err)

	res, err := f.svc.Convert(ctx, &files.ConvertRequest{Filename: "photo.png", Format: "JPG"})
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", res.Filename)
	assert.Equal(t, "/download/photo.jpg", res.DownloadURL)

	// The upload is gone, the output is downloadable.
	_, err = f.store.Stat(files.Uploaded, "photo.png")
	assert.ErrorIs(t, err, convert.ErrNotFound)

	rc, a, err := f.svc.Download(ctx, "photo.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "converted", string(data))
	assert.Equal(t, files.Converted, a.Category)

	require.Len(t, f.journal.entries, 1)
	entry := f.journal.entries[0]
	assert.Equal(t, files.StatusSucceeded, entry.Status)
	assert.Equal(t, "photo.jpg", entry.OutputName)
	assert.Equal(t, "png", entry.Source)
	assert.Equal(t, "jpg", entry.Target)
	assert.NotEmpty(t, entry.ID)
}

func TestConvertValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  files.ConvertRequest
	}{
		{"missing filename", files.ConvertRequest{Format: "pdf"}},
		{"missing format", files.ConvertRequest{Filename: "a.png"}},
		{"path traversal", files.ConvertRequest{Filename: "../a.png", Format: "pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Convert(context.Background(), &tt.req)
			assert.ErrorIs(t, err, convert.ErrValidation)
		})
	}
	assert.Zero(t, f.dispatcher.calls)
}

func TestConvertNeverUploaded(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Convert(context.Background(), &files.ConvertRequest{Filename: "ghost.docx", Format: "pdf"})
	assert.ErrorIs(t, err, convert.ErrNotFound)
	assert.Zero(t, f.dispatcher.calls)
	assert.Empty(t, f.journal.entries)
}

func TestConvertFailureKeepsUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.dispatcher.err = &convert.BackendExecutionError{Backend: "fake", Err: errors.New("ffmpeg exited 1: /srv/uploads/a.wav: Invalid data")}

	_, err := f.svc.Upload(ctx, &files.UploadRequest{Name: "a.wav", Content: strings.NewReader("x")})
	require.NoError(t, err)

	_, err = f.svc.Convert(ctx, &files.ConvertRequest{Filename: "a.wav", Format: "mp3"})
	assert.ErrorIs(t, err, convert.ErrBackend)

	_, err = f.store.Stat(files.Uploaded, "a.wav")
	assert.NoError(t, err)

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, files.StatusFailed, f.journal.entries[0].Status)
	assert.Equal(t, "backend_execution", f.journal.entries[0].ErrorKind)
	assert.Equal(t, "conversion failed", f.journal.entries[0].Error)
	assert.NotContains(t, f.journal.entries[0].Error, "/srv")
}

func TestConvertJournalErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"backend", convert.NewBackendError("office-suite", errors.New("soffice: /tmp/profile locked")), "conversion failed"},
		{"internal", errors.New("open /srv/converted: permission denied"), "internal error"},
		{"unsupported", &convert.UnsupportedConversionError{Source: "wav", Target: "docx"}, `conversion from "wav" to "docx" is not supported`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.dispatcher.err = tt.err

			_, err := f.svc.Upload(ctx, &files.UploadRequest{Name: "a.wav", Content: strings.NewReader("x")})
			require.NoError(t, err)
			_, err = f.svc.Convert(ctx, &files.ConvertRequest{Filename: "a.wav", Format: "docx"})
			assert.Error(t, err)

			require.Len(t, f.journal.entries, 1)
			assert.Equal(t, tt.expected, f.journal.entries[0].Error)
		})
	}
}

func TestConvertOutlivesCancelledRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Upload(context.Background(), &files.UploadRequest{Name: "photo.png", Content: strings.NewReader("x")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.Convert(ctx, &files.ConvertRequest{Filename: "photo.png", Format: "jpg"})
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", res.Filename)
	assert.NoError(t, f.dispatcher.ctxErr)
}

func TestConvertJournalFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.journal.err = errors.New("disk full")

	_, err := f.svc.Upload(ctx, &files.UploadRequest{Name: "a.png", Content: strings.NewReader("x")})
	require.NoError(t, err)
	_, err = f.svc.Convert(ctx, &files.ConvertRequest{Filename: "a.png", Format: "pdf"})
	assert.NoError(t, err)
}

func TestDownloadRejectsPaths(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Download(context.Background(), "../uploads/a.png")
	assert.ErrorIs(t, err, convert.ErrNotFound)
}

func TestSupportedFormats(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []format.Format{"csv", "txt"}, f.svc.SupportedFormats(".JSON"))
	assert.Empty(t, f.svc.SupportedFormats("nope"))
}

func TestRecentConversionsLimits(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 60; i++ {
		f.journal.entries = append(f.journal.entries, &files.Conversion{ID: "x"})
	}

	got, err := f.svc.RecentConversions(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, files.DefaultRecentLimit)

	got, err = f.svc.RecentConversions(context.Background(), 10000)
	require.NoError(t, err)
	assert.Len(t, got, 60)

	noJournal := files.NewService(f.store, nil, f.dispatcher, format.NewMatrix(), time.Minute)
	got, err = noJournal.RecentConversions(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJanitor(t *testing.T) {
	f := newFixture(t)

	_, err := files.NewJanitor(f.svc, "not a schedule")
	assert.Error(t, err)

	j, err := files.NewJanitor(f.svc, "@every 1h")
	require.NoError(t, err)
	j.Start()
	<-j.Stop().Done()
}

type countingObserver struct {
	uploads   []int64
	removed   int
	reclaimed int64
}

func (o *countingObserver) ObserveUpload(size int64) { o.uploads = append(o.uploads, size) }

func (o *countingObserver) ObserveSweep(removed, failed int, reclaimed int64) {
	o.removed += removed
	o.reclaimed += reclaimed
}

func TestServiceObserver(t *testing.T) {
	f := newFixture(t)
	obs := &countingObserver{}
	f.svc.SetObserver(obs)

	stale := "/srv/uploads/old.png"
	require.NoError(t, afero.WriteFile(f.fsys, stale, []byte("abc"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, f.fsys.Chtimes(stale, old, old))

	_, err := f.svc.Upload(context.Background(), &files.UploadRequest{Name: "new.png", Content: strings.NewReader("hello")})
	require.NoError(t, err)

	assert.Equal(t, []int64{5}, obs.uploads)
	assert.Equal(t, 1, obs.removed)
	assert.Equal(t, int64(3), obs.reclaimed)
}
