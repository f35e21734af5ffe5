package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexvazquez-beep/video-transcriber-backend/constants"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/async"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/entity"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/media"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/metrics"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/store"
	"github.com/alexvazquez-beep/video-transcriber-backend/internal/transcription"
)

// fakeRunner scripts the three ffmpeg invocations the pipeline makes. It
// tells them apart by their arguments and materializes the files a real run
// would leave behind.
type fakeRunner struct {
	mu         sync.Mutex
	extractErr error
	probeOut   string
	probeErr   error
	splitCount int
	splitErr   error

	extracts int
	probes   int
	splits   int
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case hasArg(args, "-show_entries"):
		f.probes++
		if f.probeErr != nil {
			return nil, []byte("probe failed"), f.probeErr
		}
		return []byte(f.probeOut + "\n"), nil, nil

	case hasArg(args, "segment"):
		f.splits++
		if f.splitErr != nil {
			return nil, []byte("split failed"), f.splitErr
		}
		dir := filepath.Dir(args[len(args)-1])
		for i := 0; i < f.splitCount; i++ {
			name := fmt.Sprintf("%s%03d%s", media.ChunkPrefix, i, media.ChunkExt)
			if err := os.WriteFile(filepath.Join(dir, name), []byte("chunk"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil

	default:
		f.extracts++
		if f.extractErr != nil {
			return nil, []byte("Error: unsupported codec"), f.extractErr
		}
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte("audio"), 0o644); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

// fakeClient records transcription calls and delegates to fn when set.
type fakeClient struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, path string) (string, error)
}

func (f *fakeClient) Transcribe(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, path)
	}
	return "transcribed text", nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) callPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type testEnv struct {
	svc     *Service
	uploads *store.UploadStore
	jobs    *store.JobStore
	workDir string
}

func newTestEnv(t *testing.T, runner *fakeRunner, client transcription.Client) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	uploads, err := store.NewUploadStore(t.TempDir(), time.Hour, logger)
	require.NoError(t, err)
	jobs := store.NewJobStore()

	queue := async.NewQueue(logger, async.WithWorkers(1))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		queue.Shutdown(ctx)
	})

	workDir := t.TempDir()
	svc := NewService(
		Config{WorkDir: workDir, MaxAttempts: 3, BaseDelay: time.Millisecond},
		uploads, jobs,
		media.NewFFmpeg(media.Config{}, runner, logger),
		client, queue,
		metrics.NewMetrics(prometheus.NewRegistry()),
		logger,
	)
	return &testEnv{svc: svc, uploads: uploads, jobs: jobs, workDir: workDir}
}

func (e *testEnv) putUpload(t *testing.T, name string) entity.Upload {
	t.Helper()
	up, err := e.uploads.Put(strings.NewReader("fake media payload"), name)
	require.NoError(t, err)
	return up
}

func waitTerminal(t *testing.T, jobs *store.JobStore, id uuid.UUID) entity.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := jobs.Get(id)
		require.NoError(t, err)
		if job.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return entity.Job{}
}

func TestService_ShortAudioTakesSinglePath(t *testing.T) {
	runner := &fakeRunner{probeOut: "420.5"}
	client := &fakeClient{}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "talk.mp4")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID)
	assert.Equal(t, constants.JobStatusDone, job.Status)
	assert.Equal(t, entity.Progress{Pct: 100, Message: "done"}, job.Progress)
	assert.Equal(t, "transcribed text", job.ResultText)
	assert.Empty(t, job.Error)

	require.Equal(t, 1, client.callCount())
	assert.True(t, strings.HasSuffix(client.callPaths()[0], "audio.mp3"))
	assert.Equal(t, 0, runner.splits, "short audio must not be chunked")

	// Everything on disk is gone by the time the job is observable as done.
	_, err = os.Stat(up.Path)
	assert.True(t, os.IsNotExist(err), "upload file should be deleted")
	_, err = os.Stat(filepath.Join(env.workDir, jobID.String()))
	assert.True(t, os.IsNotExist(err), "work dir should be deleted")
}

func TestService_UnknownDurationTakesSinglePath(t *testing.T) {
	runner := &fakeRunner{probeErr: errors.New("exit status 1")}
	client := &fakeClient{}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "mystery.mkv")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID)
	assert.Equal(t, constants.JobStatusDone, job.Status)
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, 0, runner.splits)
}

func TestService_ThresholdDurationStaysSingle(t *testing.T) {
	runner := &fakeRunner{probeOut: "600.000000"}
	client := &fakeClient{}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "exact.mp4")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID)
	assert.Equal(t, constants.JobStatusDone, job.Status)
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, 0, runner.splits)
}

func TestService_LongAudioIsChunked(t *testing.T) {
	runner := &fakeRunner{probeOut: "900.0", splitCount: 3}
	client := &fakeClient{}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "lecture.mp4")

	var (
		mu     sync.Mutex
		seen   []entity.Progress
		jobID  uuid.UUID
		gating = make(chan struct{})
	)
	client.fn = func(ctx context.Context, path string) (string, error) {
		<-gating
		job, err := env.jobs.Get(jobID)
		if err != nil {
			return "", err
		}
		mu.Lock()
		seen = append(seen, job.Progress)
		mu.Unlock()
		return filepath.Base(path), nil
	}

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)
	close(gating)

	job := waitTerminal(t, env.jobs, jobID)
	require.Equal(t, constants.JobStatusDone, job.Status, "error: %s", job.Error)

	// Chunks come back in order, joined by a blank line.
	assert.Equal(t, "chunk_000.mp3\n\nchunk_001.mp3\n\nchunk_002.mp3", job.ResultText)
	assert.Equal(t, 1, runner.splits)
	assert.Equal(t, 3, client.callCount())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.Equal(t, entity.Progress{Pct: 55, Message: "transcribing chunk 1/3"}, seen[0])
	assert.Equal(t, entity.Progress{Pct: 68, Message: "transcribing chunk 2/3"}, seen[1])
	assert.Equal(t, entity.Progress{Pct: 81, Message: "transcribing chunk 3/3"}, seen[2])
}

func TestService_ChunkCapTruncatesTranscript(t *testing.T) {
	runner := &fakeRunner{probeOut: "9000", splitCount: 30}
	client := &fakeClient{fn: func(ctx context.Context, path string) (string, error) {
		return "segment text", nil
	}}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "marathon.mp4")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID)
	require.Equal(t, constants.JobStatusDone, job.Status, "error: %s", job.Error)

	assert.Equal(t, maxChunks, client.callCount(), "chunks past the cap must not be transcribed")
	assert.True(t, strings.HasSuffix(job.ResultText, truncationNotice))
	assert.Equal(t, maxChunks, strings.Count(job.ResultText, "segment text"))
}

func TestService_ExtractFailureFailsJob(t *testing.T) {
	runner := &fakeRunner{extractErr: errors.New("exit status 1")}
	client := &fakeClient{}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "broken.mp4")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID)
	assert.Equal(t, constants.JobStatusError, job.Status)
	assert.Equal(t, entity.Progress{Pct: 0, Message: "error"}, job.Progress)
	assert.Contains(t, job.Error, "unsupported codec")
	assert.Empty(t, job.ResultText)
	assert.Equal(t, 0, client.callCount())

	// Cleanup runs on the error path too.
	_, err = os.Stat(up.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestService_NonRetryableTranscriptionFailure(t *testing.T) {
	runner := &fakeRunner{probeOut: "60"}
	client := &fakeClient{fn: func(ctx context.Context, path string) (string, error) {
		return "", errors.New("model rejected the audio")
	}}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "bad.mp4")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID)
	assert.Equal(t, constants.JobStatusError, job.Status)
	assert.Contains(t, job.Error, "model rejected the audio")
	assert.Equal(t, 1, client.callCount(), "non-retryable errors must not be retried")
}

func TestService_TransientTranscriptionFailureIsRetried(t *testing.T) {
	runner := &fakeRunner{probeOut: "60"}
	calls := 0
	client := &fakeClient{fn: func(ctx context.Context, path string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("read tcp: connection reset by peer")
		}
		return "second time lucky", nil
	}}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "flaky.mp4")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID)
	assert.Equal(t, constants.JobStatusDone, job.Status)
	assert.Equal(t, "second time lucky", job.ResultText)
	assert.Equal(t, 2, client.callCount())
}

func TestService_ChunkFailureNamesTheChunk(t *testing.T) {
	runner := &fakeRunner{probeOut: "900", splitCount: 3}
	client := &fakeClient{fn: func(ctx context.Context, path string) (string, error) {
		if strings.HasSuffix(path, "chunk_001.mp3") {
			return "", errors.New("model rejected the audio")
		}
		return "ok", nil
	}}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "partly-bad.mp4")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID)
	assert.Equal(t, constants.JobStatusError, job.Status)
	assert.Contains(t, job.Error, "chunk 2/3")
	assert.Equal(t, 2, client.callCount(), "the failing chunk stops the loop")
}

func TestService_PanicInPipelineFailsJob(t *testing.T) {
	runner := &fakeRunner{probeOut: "60"}
	client := &fakeClient{fn: func(ctx context.Context, path string) (string, error) {
		panic("client exploded")
	}}
	env := newTestEnv(t, runner, client)
	up := env.putUpload(t, "kaboom.mp4")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID)
	assert.Equal(t, constants.JobStatusError, job.Status)
	assert.Contains(t, job.Error, "internal failure")

	_, err = os.Stat(up.Path)
	assert.True(t, os.IsNotExist(err), "cleanup must run on the panic path")
}

func TestService_CreateJobUnknownUpload(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{}, &fakeClient{})

	_, err := env.svc.CreateJob(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.Equal(t, 0, env.jobs.Len(), "no job record for a rejected request")
}

func TestService_CreateJobWithoutClient(t *testing.T) {
	env := newTestEnv(t, &fakeRunner{}, nil)
	up := env.putUpload(t, "a.mp4")

	_, err := env.svc.CreateJob(context.Background(), up.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotConfigured))
	assert.Equal(t, 0, env.jobs.Len())
}

func TestService_JobReturnsSnapshot(t *testing.T) {
	runner := &fakeRunner{probeOut: "60"}
	env := newTestEnv(t, runner, &fakeClient{})
	up := env.putUpload(t, "a.mp4")

	jobID, err := env.svc.CreateJob(context.Background(), up.ID)
	require.NoError(t, err)

	job, err := env.svc.Job(jobID)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)

	_, err = env.svc.Job(uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
