// Package session はログインセッションの保持とライフサイクルポリシーを提供する。
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Record は永続化されるログインセッションレコード。
// 固定のストレージキー（ファイル）の下に常に高々1件だけ保存される。
// フィールド名は既存クライアントの保存形式に合わせる。
type Record struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	LoginTime string `json:"loginTime"` // RFC 3339
}

// Storage はセッションレコードの永続化先。
type Storage interface {
	// Load は保存済みレコードを返す。レコードが無い場合は(nil, nil)。
	Load() (*Record, error)
	// Save はレコードを保存する。既存レコードは上書きされる。
	Save(rec *Record) error
	// Clear はレコードを破棄する。レコードが無くてもエラーにしない。
	Clear() error
}

// FileStorage は単一のJSONファイルにレコードを保存するStorage実装。
// ブラウザ版のlocalStorageの固定キー1件に相当する。
type FileStorage struct {
	path string
}

// NewFileStorage はFileStorageを生成する。
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load は保存済みレコードを読み込む。
func (s *FileStorage) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("セッションファイルの読み込みに失敗しました: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("セッションレコードの解析に失敗しました: %w", err)
	}
	return &rec, nil
}

// Save はレコードをファイルへ書き込む。
func (s *FileStorage) Save(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("セッションレコードの直列化に失敗しました: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("セッションファイルの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Clear はファイルを削除する。
func (s *FileStorage) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("セッションファイルの削除に失敗しました: %w", err)
	}
	return nil
}

// MemoryStorage はメモリ上にレコードを保持するStorage実装。テスト用。
type MemoryStorage struct {
	mu  sync.Mutex
	rec *Record
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load は保持中のレコードを返す。
func (s *MemoryStorage) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return nil, nil
	}
	rec := *s.rec
	return &rec, nil
}

// Save はレコードを保持する。
func (s *MemoryStorage) Save(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *rec
	s.rec = &copied
	return nil
}

// Clear はレコードを破棄する。
func (s *MemoryStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = nil
	return nil
}
