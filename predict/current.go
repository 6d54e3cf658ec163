package predict

import "sync"

// Current holds the engine serving predictions. A finished training run swaps in its model while requests are
// being served.
type Current struct {
	mu     sync.RWMutex
	engine *Engine
}

func NewCurrent(engine *Engine) *Current {
	return &Current{engine: engine}
}

// Engine returns the serving engine, nil if no model was loaded yet.
func (c *Current) Engine() *Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engine
}

func (c *Current) Swap(engine *Engine) {
	c.mu.Lock()
	c.engine = engine
	c.mu.Unlock()
}
