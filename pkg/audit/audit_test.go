package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Event Tests
// =============================================================================

func TestU_NewEvent_Creation(t *testing.T) {
	event := NewEvent(EventKeyInstalled, ResultSuccess)

	if event.EventType != EventKeyInstalled {
		t.Errorf("expected EventType=%s, got %s", EventKeyInstalled, event.EventType)
	}
	if event.Result != ResultSuccess {
		t.Errorf("expected Result=%s, got %s", ResultSuccess, event.Result)
	}
	if event.Timestamp == "" {
		t.Error("Timestamp should not be empty")
	}
	if event.Actor.Type != "user" {
		t.Errorf("expected Actor.Type=user, got %s", event.Actor.Type)
	}
}

func TestU_Event_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   *Event
		wantErr bool
	}{
		{
			name:    "[Unit] Validate: valid event",
			event:   NewEvent(EventKeyInstalled, ResultSuccess),
			wantErr: false,
		},
		{
			name: "[Unit] Validate: missing event_type",
			event: &Event{
				Timestamp: "2026-01-15T10:00:00Z",
				Actor:     Actor{Type: "user", ID: "admin"},
				Result:    ResultSuccess,
			},
			wantErr: true,
		},
		{
			name: "[Unit] Validate: missing result",
			event: &Event{
				EventType: EventKeyRemoved,
				Timestamp: "2026-01-15T10:00:00Z",
				Actor:     Actor{Type: "user", ID: "admin"},
			},
			wantErr: true,
		},
		{
			name: "[Unit] Validate: missing actor",
			event: &Event{
				EventType: EventKeyRemoved,
				Timestamp: "2026-01-15T10:00:00Z",
				Result:    ResultSuccess,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestU_Event_CanonicalJSON(t *testing.T) {
	event := NewEvent(EventSuiteBValidated, ResultSuccess).
		WithObject(Object{Type: "key_entry", Network: "corp-net"}).
		WithContext(Context{Cipher: "ECDHE_ECDSA"})
	event.HashPrev = GenesisHash

	canonical, err := event.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}

	// Verify it doesn't contain the Hash field
	if strings.Contains(string(canonical), `"hash":`) {
		t.Error("CanonicalJSON should not contain hash field")
	}

	// Verify it's valid JSON
	var parsed map[string]interface{}
	if err := json.Unmarshal(canonical, &parsed); err != nil {
		t.Errorf("CanonicalJSON produced invalid JSON: %v", err)
	}
}

// =============================================================================
// FileWriter Tests
// =============================================================================

func TestU_FileWriter_WriteChainsHashes(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")

	writer, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer func() { _ = writer.Close() }()

	event1 := NewEvent(EventKeyInstalled, ResultSuccess).
		WithObject(Object{Type: "key_entry", Alias: "corp-wpa3_eap", Network: "corp-net"})
	if err := writer.Write(event1); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// First event chains from genesis
	if event1.HashPrev != GenesisHash {
		t.Errorf("first event HashPrev = %s, want %s", event1.HashPrev, GenesisHash)
	}
	if !strings.HasPrefix(event1.Hash, HashPrefix) {
		t.Errorf("first event Hash = %s, want %s prefix", event1.Hash, HashPrefix)
	}

	event2 := NewEvent(EventKeyRemoved, ResultSuccess).
		WithObject(Object{Type: "key_entry", Aliases: []string{"corp-wpa3_eap_0"}})
	if err := writer.Write(event2); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Second event chains from the first
	if event2.HashPrev != event1.Hash {
		t.Errorf("second event HashPrev = %s, want %s", event2.HashPrev, event1.Hash)
	}
	if writer.LastHash() != event2.Hash {
		t.Errorf("LastHash() = %s, want %s", writer.LastHash(), event2.Hash)
	}
}

func TestU_FileWriter_RejectsInvalidEvent(t *testing.T) {
	tmpDir := t.TempDir()
	writer, err := NewFileWriter(filepath.Join(tmpDir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer func() { _ = writer.Close() }()

	if err := writer.Write(&Event{}); err == nil {
		t.Error("Write() accepted an event with no fields")
	}
}

func TestU_FileWriter_ChainContinuesAcrossReopen(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")

	writer, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	event1 := NewEvent(EventKeyInstalled, ResultSuccess)
	if err := writer.Write(event1); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopen and keep writing; the chain must not restart at genesis.
	writer, err = NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() after reopen error = %v", err)
	}
	defer func() { _ = writer.Close() }()

	event2 := NewEvent(EventGrantResolved, ResultSuccess)
	if err := writer.Write(event2); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if event2.HashPrev != event1.Hash {
		t.Errorf("after reopen HashPrev = %s, want %s", event2.HashPrev, event1.Hash)
	}
}

// =============================================================================
// Chain Verification Tests
// =============================================================================

func writeEvents(t *testing.T, path string, n int) {
	t.Helper()
	writer, err := NewFileWriter(path)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer func() { _ = writer.Close() }()

	for i := 0; i < n; i++ {
		event := NewEvent(EventKeyInstalled, ResultSuccess).
			WithObject(Object{Type: "key_entry", Alias: "corp-wpa3_eap"})
		if err := writer.Write(event); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
}

func TestU_VerifyChain_ValidLog(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")
	writeEvents(t, logPath, 5)

	count, err := VerifyChain(logPath)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if count != 5 {
		t.Errorf("VerifyChain() count = %d, want 5", count)
	}
}

func TestU_VerifyChain_EmptyLog(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")
	if err := os.WriteFile(logPath, nil, 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	count, err := VerifyChain(logPath)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if count != 0 {
		t.Errorf("VerifyChain() count = %d, want 0", count)
	}
}

func TestU_VerifyChain_DetectsTampering(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")
	writeEvents(t, logPath, 3)

	// Flip the result of the second event
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	lines[1] = strings.Replace(lines[1], `"result":"success"`, `"result":"failure"`, 1)
	if err := os.WriteFile(logPath, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	count, err := VerifyChain(logPath)
	if err == nil {
		t.Fatal("VerifyChain() did not detect tampering")
	}
	if count != 1 {
		t.Errorf("VerifyChain() count = %d, want 1 valid event before break", count)
	}
}

// =============================================================================
// Writer Composition Tests
// =============================================================================

func TestU_NopWriter(t *testing.T) {
	var w NopWriter
	if err := w.Write(NewEvent(EventAuthFailed, ResultFailure)); err != nil {
		t.Errorf("Write() error = %v", err)
	}
	if w.LastHash() != GenesisHash {
		t.Errorf("LastHash() = %s, want %s", w.LastHash(), GenesisHash)
	}
}

func TestU_MultiWriter_FansOut(t *testing.T) {
	tmpDir := t.TempDir()
	fileWriter, err := NewFileWriter(filepath.Join(tmpDir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	multi := NewMultiWriter(NopWriter{}, fileWriter)
	defer func() { _ = multi.Close() }()

	event := NewEvent(EventGrantResolved, ResultSuccess).
		WithContext(Context{User: 100, Granted: true})
	if err := multi.Write(event); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if fileWriter.LastHash() == GenesisHash {
		t.Error("file writer did not record the event")
	}
}

// =============================================================================
// Global Facade Tests
// =============================================================================

func TestU_Audit_DisabledIsNoop(t *testing.T) {
	if Enabled() {
		t.Skip("audit already initialized by another test")
	}

	if err := LogKeyInstalled("corp-net", "corp-wpa3_eap", nil, true, ""); err != nil {
		t.Errorf("LogKeyInstalled() with audit disabled error = %v", err)
	}
}

func TestU_Audit_InitFileAndLog(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.jsonl")

	if err := InitFile(logPath); err != nil {
		t.Fatalf("InitFile() error = %v", err)
	}
	defer func() { _ = Close() }()

	if !Enabled() {
		t.Fatal("Enabled() = false after InitFile()")
	}
	if err := LogKeyRemoved("corp-net", []string{"corp-wpa3_eap"}, false, true); err != nil {
		t.Fatalf("LogKeyRemoved() error = %v", err)
	}
	if err := LogSuiteBValidated("corp-net", "ECDHE_RSA", true, ""); err != nil {
		t.Fatalf("LogSuiteBValidated() error = %v", err)
	}

	count, err := VerifyChain(logPath)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if count != 2 {
		t.Errorf("VerifyChain() count = %d, want 2", count)
	}
}
