package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorage_LoadMissingFileReturnsNil(t *testing.T) {
	s := NewFileStorage(filepath.Join(t.TempDir(), "missing.json"))

	rec, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Errorf("rec = %+v, want nil", rec)
	}
}

func TestFileStorage_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gohan_login_info.json")
	s := NewFileStorage(path)

	saved := &Record{
		UserID:    "user1",
		UserName:  "太郎",
		LoginTime: "2025-09-10T08:00:00+09:00",
	}
	if err := s.Save(saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	rec, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec == nil {
		t.Fatal("rec should not be nil")
	}
	if rec.UserID != "user1" || rec.UserName != "太郎" || rec.LoginTime != saved.LoginTime {
		t.Errorf("rec = %+v", rec)
	}
}

func TestFileStorage_SaveUsesRestrictivePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gohan_login_info.json")
	s := NewFileStorage(path)

	if err := s.Save(&Record{UserID: "user1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("perm = %o, want 600", info.Mode().Perm())
	}
}

func TestFileStorage_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gohan_login_info.json")
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	s := NewFileStorage(path)

	if _, err := s.Load(); err == nil {
		t.Error("corrupt file should return an error")
	}
}

func TestFileStorage_ClearIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gohan_login_info.json")
	s := NewFileStorage(path)

	if err := s.Save(&Record{UserID: "user1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("first Clear failed: %v", err)
	}
	// レコードが無い状態のClearもエラーにしない
	if err := s.Clear(); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}

	rec, err := s.Load()
	if err != nil || rec != nil {
		t.Errorf("Load after Clear = (%+v, %v), want (nil, nil)", rec, err)
	}
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	s := NewMemoryStorage()
	if err := s.Save(&Record{UserID: "user1"}); err != nil {
		t.Fatal(err)
	}

	rec1, _ := s.Load()
	rec1.UserID = "mutated"

	rec2, _ := s.Load()
	if rec2.UserID != "user1" {
		t.Errorf("stored record should not be affected by caller mutation, got %q", rec2.UserID)
	}
}
