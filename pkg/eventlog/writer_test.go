package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtycrm/pkg/proto"
)

func TestWriteMessage(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir)
	require.NoError(t, err)
	defer writer.Close()

	msg := proto.NewMessage("generate report", proto.SourceAPI, proto.AgentAnalytics,
		proto.ActionGenerateReport, map[string]any{"user_id": "u-1"})
	require.NoError(t, writer.WriteMessage(DirectionRequest, msg))

	reply := proto.NewSuccessReply(proto.AgentAnalytics, map[string]any{"report": "ok"})
	require.NoError(t, writer.WriteMessage(DirectionReply, reply))

	name := filepath.Join(dir, "events-"+time.Now().Format("2006-01-02")+".jsonl")
	file, err := os.Open(name)
	require.NoError(t, err)
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, entries, 2)

	assert.Equal(t, DirectionRequest, entries[0].Direction)
	assert.Equal(t, proto.AgentAnalytics, entries[0].Message.TargetAgent)
	assert.Equal(t, proto.ActionGenerateReport, entries[0].Message.Action())

	assert.Equal(t, DirectionReply, entries[1].Direction)
	assert.Equal(t, proto.StatusSuccess, entries[1].Message.Status())
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestWriterClonesMessage(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir)
	require.NoError(t, err)
	defer writer.Close()

	msg := proto.NewMessage("task", proto.SourceAPI, proto.AgentScheduling,
		proto.ActionFindSlots, map[string]any{"start_date": "2026-09-01"})
	require.NoError(t, writer.WriteMessage(DirectionRequest, msg))

	// Mutating after write must not corrupt what was journaled.
	msg.Metadata[proto.KeyAction] = "mutated"

	name := filepath.Join(dir, "events-"+time.Now().Format("2006-01-02")+".jsonl")
	raw, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(raw), proto.ActionFindSlots)
}

func TestNewWriterCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	writer, err := NewWriter(dir)
	require.NoError(t, err)
	defer writer.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
