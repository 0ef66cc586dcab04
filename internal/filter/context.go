package filter

import "sync"

// Context is the style-filter state: selected filter, derived config,
// rendering state and the device detected once per process.
type Context struct {
	mu       sync.RWMutex
	filter   ID
	config   PostProcessing
	state    RenderState
	device   Device
	detected bool
	once     sync.Once
}

// Snapshot is a copy of the context.
type Snapshot struct {
	Filter   ID             `json:"filter"`
	Config   PostProcessing `json:"config"`
	State    RenderState    `json:"system_state"`
	Device   Device         `json:"device"`
	Detected bool           `json:"detected"`
}

// NewContext creates a context with the given initial filter and state.
// Unknown filters fall back to Default.
func NewContext(initial ID, state RenderState) *Context {
	if _, ok := Lookup(initial); !ok {
		initial = Default
	}
	if state == "" {
		state = RenderIdle
	}
	return &Context{
		filter: initial,
		config: Derive(state),
		state:  state,
		device: DefaultDevice,
	}
}

// Snapshot returns the current context.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Filter:   c.filter,
		Config:   c.config,
		State:    c.state,
		Device:   c.device,
		Detected: c.detected,
	}
}

// Filter returns the selected filter.
func (c *Context) Filter() ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// Config returns the current post-processing config.
func (c *Context) Config() PostProcessing {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// SetFilter selects a filter. It does not touch the config.
func (c *Context) SetFilter(id ID) bool {
	if _, ok := Lookup(id); !ok {
		return false
	}
	c.mu.Lock()
	c.filter = id
	c.mu.Unlock()
	return true
}

// SetConfig shallow-merges a patch into the config.
func (c *Context) SetConfig(p Patch) {
	c.mu.Lock()
	c.config = c.config.Apply(p)
	c.mu.Unlock()
}

// SetSystemState records a rendering state change and recomputes the config
// from the defaults. Setting the current state again is a no-op so manual
// patches survive repeated notifications.
func (c *Context) SetSystemState(state RenderState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state == c.state {
		return
	}
	c.state = state
	c.config = Derive(state)
}

// Detect runs device detection once; later calls are ignored.
// It reports whether this call performed the detection.
func (c *Context) Detect(p Probe) bool {
	ran := false
	c.once.Do(func() {
		d := Detect(p)
		c.mu.Lock()
		c.device = d
		c.detected = true
		c.mu.Unlock()
		ran = true
	})
	return ran
}
