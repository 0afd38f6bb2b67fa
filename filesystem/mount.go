package filesystem

import "sync"

// mount binds a device to a registry path prefix and owns the device's
// single background worker
type mount struct {
	reg    *Registry
	prefix string
	dev    Device

	mu sync.Mutex
	w  *worker
}

func newMount(reg *Registry, prefix string, dev Device) *mount {
	return &mount{reg: reg, prefix: prefix, dev: dev}
}

// devicePath converts a registry path below the prefix into a device path
func (m *mount) devicePath(norm string) string {
	rel, _ := relPath(m.prefix, norm)
	return "/" + rel
}

// worker returns the mount worker, starting it on first use
func (m *mount) worker() *worker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.w == nil {
		m.w = newWorker(m.dev.Name()+":"+m.prefix, m.reg.cfg.WorkerQueueSize)
	}
	return m.w
}

func (m *mount) stop() {
	m.mu.Lock()
	w := m.w
	m.mu.Unlock()
	if w != nil {
		w.stop()
	}
}
