package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brianly1003/aidev/internal/config"
)

// exerciseStorage runs the shared Storage contract against s.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	if err := s.Set(KeyToken, "tok-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(KeyToken, "tok-2"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if v, ok, err := s.Get(KeyToken); err != nil || !ok || v != "tok-2" {
		t.Fatalf("Get() = %q, %v, %v", v, ok, err)
	}

	if err := s.Remove(KeyToken); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := s.Remove(KeyToken); err != nil {
		t.Fatalf("Remove() of missing key error = %v", err)
	}
	if _, ok, _ := s.Get(KeyToken); ok {
		t.Fatal("key still present after Remove")
	}
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileStorage(path)
	exerciseStorage(t, s)

	if err := s.Set(KeyUser, `{"username":"alice"}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("session file mode = %o, want 600", perm)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	// A second instance sees the same data.
	if v, ok, _ := NewFileStorage(path).Get(KeyUser); !ok || v != `{"username":"alice"}` {
		t.Errorf("second instance Get() = %q, %v", v, ok)
	}
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := NewFileStorage(path).Get(KeyUser); err == nil {
		t.Error("Get() on a corrupt file should fail")
	}
}

func TestSQLiteStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := OpenSQLiteStorage(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStorage() error = %v", err)
	}
	exerciseStorage(t, s)

	if err := s.Set(KeyUser, "alice"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := OpenSQLiteStorage(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if v, ok, _ := reopened.Get(KeyUser); !ok || v != "alice" {
		t.Errorf("Get() after reopen = %q, %v", v, ok)
	}
}

func TestOpenStorage(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     config.SessionConfig
		wantErr bool
	}{
		{"file", config.SessionConfig{Backend: config.SessionBackendFile, Path: filepath.Join(dir, "s.json")}, false},
		{"sqlite", config.SessionConfig{Backend: config.SessionBackendSQLite, Path: filepath.Join(dir, "s.db")}, false},
		{"memory", config.SessionConfig{Backend: config.SessionBackendMemory}, false},
		{"unknown", config.SessionConfig{Backend: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenStorage(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenStorage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}
