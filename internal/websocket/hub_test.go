package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chainarb/internal/models"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestOriginCheckerCheck(t *testing.T) {
	checker := &OriginChecker{
		allowedOrigins: map[string]struct{}{
			"http://localhost:3000": {},
			"https://example.com":   {},
		},
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true}, // не-браузерные клиенты
		{"http://localhost:3000", true},
		{"https://example.com", true},
		{"http://evil.com", false},
		{"http://localhost:8080", false},
	}
	for _, tt := range tests {
		if got := checker.Check(tt.origin); got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginCheckerAllowAll(t *testing.T) {
	checker := &OriginChecker{allowAll: true}

	for _, origin := range []string{"http://localhost:3000", "https://evil.com"} {
		if !checker.Check(origin) {
			t.Errorf("allowAll=true but Check(%q) = false", origin)
		}
	}
}

func TestHubBroadcastNonBlocking(t *testing.T) {
	hub := NewHub()
	// Run не запущен: канал заполняется и сообщения роняются,
	// но Broadcast не блокируется
	for i := 0; i < 1000; i++ {
		hub.Broadcast(map[string]int{"i": i})
	}

	if hub.DroppedMessages() == 0 {
		t.Error("expected dropped messages with a full channel")
	}
}

func TestHubStop(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Hub.Run() did not exit after Stop()")
	}
}

func TestHubConcurrentOperations(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 500

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.Broadcast(map[string]int{"goroutine": id, "op": j})
			}
		}(i)
	}
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}

// ============================================================
// Сообщения
// ============================================================

func TestNewLockUpdateMessage(t *testing.T) {
	reason := "anomaly auto-lock"
	settings := &models.SystemSettings{
		ExecutionLocked: true,
		LockReason:      &reason,
		Version:         7,
	}

	msg := NewLockUpdateMessage(settings)
	if msg.Type != MessageTypeLockUpdate {
		t.Errorf("type = %s, want lock_update", msg.Type)
	}
	if !msg.Locked || msg.Reason == nil || *msg.Reason != reason || msg.Version != 7 {
		t.Errorf("lock message fields broken: %+v", msg)
	}
}

func TestRunUpdateMessageJSON(t *testing.T) {
	run := &models.Run{ID: 5, Status: models.RunStatusExecuted, Network: "SOLANA"}

	data, err := json.Marshal(NewRunUpdateMessage(run))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "run_update" {
		t.Errorf("type = %v, want run_update", decoded["type"])
	}
}

func BenchmarkHubBroadcast(b *testing.B) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	run := &models.Run{ID: 1, Status: models.RunStatusExecuted, Network: "SOLANA"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.BroadcastRunUpdate(run)
	}
}

func BenchmarkHubClientCount(b *testing.B) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = hub.ClientCount()
	}
}
