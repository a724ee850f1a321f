package project

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summeriq/internal/archive"
	"summeriq/internal/bytestore"
	"summeriq/internal/docs"
	"summeriq/internal/events"
)

type stubLLM struct {
	mu        sync.Mutex
	prompts   []string
	failFinal bool
	gate      chan struct{} // when set, every call waits for it to close
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.failFinal && strings.Contains(prompt, "Now write the final documentation") {
		return "", errors.New("provider down")
	}
	return "reply", nil
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func (s *stubLLM) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompts[len(s.prompts)-1]
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newService(t *testing.T, llm *stubLLM) (*Service, *bytestore.MemoryStore) {
	t.Helper()
	st := bytestore.NewMemoryStore()
	svc, err := New(st, llm, nil, Options{Now: func() time.Time { return time.Unix(1700000000, 0) }})
	require.NoError(t, err)
	return svc, st
}

func upload(t *testing.T, svc *Service, files map[string]string) string {
	t.Helper()
	id, err := svc.UploadAndExtract(context.Background(), "demo", zipOf(t, files))
	require.NoError(t, err)
	return id
}

var sample = map[string]string{
	"src/main.ext": "main",
	"README.md":    "# Demo\n\n## Setup\nrun it",
	"pkg/util.ext": "util",
}

func TestUploadAndListTree(t *testing.T) {
	svc, _ := newService(t, &stubLLM{})
	id := upload(t, svc, sample)

	nodes, err := svc.ListTree(context.Background(), id)
	require.NoError(t, err)
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"pkg", "src", "README.md"}, names)

	meta, err := svc.Meta(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "demo", meta.Name)
	assert.Equal(t, 3, meta.FileCount)
}

func TestFailedUploadLeavesNothing(t *testing.T) {
	svc, st := newService(t, &stubLLM{})
	_, err := svc.UploadAndExtract(context.Background(), "bad", []byte("not a zip"))
	var xerr *archive.ExtractionError
	require.ErrorAs(t, err, &xerr)
	require.ErrorIs(t, err, archive.ErrNotArchive)

	children, err := st.ListChildren(context.Background(), "projects")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestUploadContainsTraversal(t *testing.T) {
	svc, st := newService(t, &stubLLM{})
	id := upload(t, svc, map[string]string{"../../etc/passwd": "x", "/abs/file.txt": "y"})

	children, err := st.ListChildren(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []bytestore.Entry{{Name: "projects", IsDir: true}}, children)

	got, err := svc.ReadFile(context.Background(), id, "etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "x", string(got))
	got, err = svc.ReadFile(context.Background(), id, "abs/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "y", string(got))
}

func TestUnknownProject(t *testing.T) {
	svc, _ := newService(t, &stubLLM{})
	ctx := context.Background()
	_, err := svc.ListTree(ctx, "00000000-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = svc.ListTree(ctx, "../../etc")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = svc.GetDocumentation(ctx, "nope")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = svc.AnalyzeFile(ctx, "nope", "a.go")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestAnalyzeFile(t *testing.T) {
	llm := &stubLLM{}
	svc, _ := newService(t, llm)
	id := upload(t, svc, map[string]string{
		"main.go":  "package main",
		"logo.png": "\x89PNG",
		"big.txt":  strings.Repeat("a", 20_000),
	})
	ctx := context.Background()

	rec, err := svc.AnalyzeFile(ctx, id, "/main.go")
	require.NoError(t, err)
	assert.Equal(t, "main.go", rec.Path)
	assert.Equal(t, "Go", rec.Language)
	calls := llm.calls()

	_, err = svc.AnalyzeFile(ctx, id, "main.go")
	require.NoError(t, err)
	assert.Equal(t, calls, llm.calls(), "cached")

	big, err := svc.AnalyzeFile(ctx, id, "big.txt")
	require.NoError(t, err)
	assert.Len(t, big.RawContent, 10240)

	_, err = svc.AnalyzeFile(ctx, id, "logo.png")
	assert.ErrorIs(t, err, ErrNotText)
	_, err = svc.AnalyzeFile(ctx, id, "../main.go")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = svc.AnalyzeFile(ctx, id, "missing.go")
	assert.ErrorIs(t, err, bytestore.ErrNotFound)
}

func TestGetDocumentationIsMemoized(t *testing.T) {
	llm := &stubLLM{}
	svc, _ := newService(t, llm)
	id := upload(t, svc, sample)
	ctx := context.Background()

	sub := svc.Events().Subscribe(id)
	defer svc.Events().Unsubscribe(sub)

	doc, err := svc.GetDocumentation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "demo", doc.ProjectName)
	assert.Equal(t, "run it", doc.SetupInstructions)
	assert.False(t, doc.Degraded)
	calls := llm.calls()

	again, err := svc.GetDocumentation(ctx, id)
	require.NoError(t, err)
	assert.Same(t, doc, again)
	assert.Equal(t, calls, llm.calls())

	var last events.Event
	for len(sub) > 0 {
		last = <-sub
	}
	assert.Equal(t, events.EventDocumentReady, last.Type)
}

func TestDocumentationSurvivesFirstCallerCancelling(t *testing.T) {
	llm := &stubLLM{gate: make(chan struct{})}
	svc, _ := newService(t, llm)
	id := upload(t, svc, sample)

	ctxA, cancelA := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := svc.GetDocumentation(ctxA, id)
		errA <- err
	}()

	time.AfterFunc(80*time.Millisecond, func() { close(llm.gate) })
	time.Sleep(10 * time.Millisecond)
	doc, err := svc.GetDocumentation(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, doc.Degraded)
	assert.Equal(t, "reply", doc.Architecture)
	require.ErrorIs(t, <-errA, context.DeadlineExceeded)
}

func TestDegradedDocumentationIsNotMemoized(t *testing.T) {
	llm := &stubLLM{failFinal: true}
	svc, _ := newService(t, llm)
	id := upload(t, svc, sample)
	ctx := context.Background()

	doc, err := svc.GetDocumentation(ctx, id)
	require.NoError(t, err)
	assert.True(t, doc.Degraded)
	assert.Equal(t, docs.NoDocumentation, doc.Description)
	calls := llm.calls()

	_, err = svc.GetDocumentation(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, llm.calls(), calls)
}

func TestAsk(t *testing.T) {
	llm := &stubLLM{}
	svc, _ := newService(t, llm)
	id := upload(t, svc, map[string]string{"src/app.js": "console.log('app')", "README.md": "hello"})
	ctx := context.Background()

	out, err := svc.Ask(ctx, id, "what does it do?", "src/app.js")
	require.NoError(t, err)
	assert.Equal(t, "reply", out)
	prompt := llm.last()
	assert.Contains(t, prompt, "--- src/app.js ---\nconsole.log('app')\n\n")
	assert.Contains(t, prompt, "what does it do?")

	_, err = svc.Ask(ctx, id, "overview?", "")
	require.NoError(t, err)
	prompt = llm.last()
	assert.Contains(t, prompt, "--- README.md ---\nhello")
	assert.Contains(t, prompt, "--- src/app.js ---")
}

func TestDeleteProject(t *testing.T) {
	svc, _ := newService(t, &stubLLM{})
	id := upload(t, svc, sample)
	ctx := context.Background()
	require.NoError(t, svc.DeleteProject(ctx, id))
	_, err := svc.ListTree(ctx, id)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
