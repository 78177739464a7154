package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pendingCalls は進行中の呼び出しのコールバック名と受け口の対応表。
// JSONPのグローバルコールバック（名前付き継続）を、チャネルとして明示的に保持する。
// 受け口は1回限りで、解除済みの名前への配信は何もしない。
// タイムアウト経路が先に解除した後に届いた遅延応答はここで握りつぶされる。
type pendingCalls struct {
	mu      sync.Mutex
	entries map[string]chan map[string]any
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{entries: make(map[string]chan map[string]any)}
}

// register は名前付きの1回限りの受け口を登録して返す。
func (p *pendingCalls) register(name string) chan map[string]any {
	ch := make(chan map[string]any, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[name] = ch
	return ch
}

// resolve は受け口が登録されていれば解除して配信する。
// 配信できた場合はtrueを返す。解除済みの名前に対しては何もしない。
func (p *pendingCalls) resolve(name string, payload map[string]any) bool {
	p.mu.Lock()
	ch, ok := p.entries[name]
	if ok {
		delete(p.entries, name)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- payload
	return true
}

// deregister は受け口を解除する。以後この名前への配信は無効になる。
func (p *pendingCalls) deregister(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, name)
}

// size は登録中の受け口の数を返す。テスト用。
func (p *pendingCalls) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// newCallbackName は呼び出しごとに一意なコールバック識別子を生成する。
// 複数の呼び出しが同時に進行しても衝突しないよう、
// タイムスタンプとランダムな接尾辞を組み合わせる。
func newCallbackName() string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("cb_%d_%s", time.Now().UnixNano(), suffix)
}
