package progress

import (
	"sync"
	"time"
)

// mockTimeProvider implements TimeProvider with manually advanced time for
// deterministic rate and throttle tests.
type mockTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

func newMockTimeProvider() *mockTimeProvider {
	return &mockTimeProvider{now: time.Unix(1700000000, 0)}
}

func (m *mockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockTimeProvider) Since(t time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now.Sub(t)
}

func (m *mockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func testDescriptors() []FileDescriptor {
	return []FileDescriptor{
		{Name: "a.bin", RelativePath: "a.bin", Size: 10 * 1024 * 1024},
		{Name: "b.bin", RelativePath: "b.bin", Size: 20 * 1024 * 1024},
		{Name: "c.bin", RelativePath: "c.bin", Size: 5 * 1024 * 1024},
	}
}
