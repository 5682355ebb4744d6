package feed

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFeed(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryFeed()

	findings, err := m.Findings(ctx, "inv-1")
	require.NoError(t, err)
	assert.Empty(t, findings)

	m.Append(
		graph.Finding{ID: "f1", InvestigationID: "inv-1", AgentType: graph.AgentPhone},
		graph.Finding{ID: "f2", InvestigationID: "inv-2", AgentType: graph.AgentWeb},
	)

	select {
	case <-m.Updates():
	default:
		t.Fatal("expected an update signal after Append")
	}

	findings, err = m.Findings(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "f1", findings[0].ID)

	// returned slice is a copy
	findings[0].ID = "mutated"
	again, _ := m.Findings(ctx, "inv-1")
	assert.Equal(t, "f1", again[0].ID)
}

func TestMemoryFeedFailure(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryFeed()
	m.Append(graph.Finding{ID: "f1", InvestigationID: "inv-1"})

	boom := errors.New("connection refused")
	m.Fail(boom)
	_, err := m.Findings(ctx, "inv-1")
	assert.ErrorIs(t, err, boom)

	m.Fail(nil)
	findings, err := m.Findings(ctx, "inv-1")
	require.NoError(t, err)
	assert.Len(t, findings, 1)
}

func TestMemoryFeedSignalsCoalesce(t *testing.T) {
	m := NewMemoryFeed()
	for i := 0; i < 5; i++ {
		m.Append(graph.Finding{ID: "f", InvestigationID: "inv"})
	}
	assert.Len(t, m.Updates(), 1)
}

func TestMemoryFeedCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryFeed().Findings(ctx, "inv")
	assert.ErrorIs(t, err, context.Canceled)
}

func writeFindings(t *testing.T, path string, findings []graph.Finding) {
	t.Helper()
	data, err := json.Marshal(findings)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestFileFeedFindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.json")
	writeFindings(t, path, []graph.Finding{
		{ID: "f1", InvestigationID: "inv-1", AgentType: graph.AgentPhone, RawData: json.RawMessage(`{"phone":"5552345678"}`)},
		{ID: "f2", InvestigationID: "inv-2", AgentType: graph.AgentWeb},
		{ID: "f3", AgentType: graph.AgentHolehe},
	})

	f := NewFileFeed(path)
	findings, err := f.Findings(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "f1", findings[0].ID)
	assert.Equal(t, "f3", findings[1].ID)
	assert.JSONEq(t, `{"phone":"5552345678"}`, string(findings[0].RawData))
}

func TestFileFeedErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFileFeed(filepath.Join(dir, "missing.json")).Findings(context.Background(), "")
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = NewFileFeed(bad).Findings(context.Background(), "")
	assert.Error(t, err)
}

func TestFileFeedWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.json")
	writeFindings(t, path, nil)

	f := NewFileFeed(path, WithDebounce(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.Start(ctx))
	defer f.Stop()

	writeFindings(t, path, []graph.Finding{{ID: "f1", AgentType: graph.AgentPhone}})

	select {
	case <-f.Updates():
	case <-time.After(3 * time.Second):
		t.Fatal("expected an update after the file changed")
	}

	findings, err := f.Findings(ctx, "")
	require.NoError(t, err)
	assert.Len(t, findings, 1)
}
