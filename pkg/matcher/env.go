package matcher

import "github.com/oxhq/structgrep/pkg/metavar"

// EnvHandle wraps a metavar.Env in copy-on-write semantics: reads go
// straight through to the wrapped env; the first write clones it. A failed
// match attempt can simply be discarded without undoing any mutation,
// because none ever touched the parent's env. A successful attempt is
// folded back into the parent via Promote.
type EnvHandle struct {
	base  *metavar.Env
	owned *metavar.Env
}

// NewEnvHandle wraps base for a new match attempt. A nil base starts from an
// empty environment.
func NewEnvHandle(base *metavar.Env) *EnvHandle {
	if base == nil {
		base = metavar.NewEnv()
	}
	return &EnvHandle{base: base}
}

func (h *EnvHandle) current() *metavar.Env {
	if h.owned != nil {
		return h.owned
	}
	return h.base
}

func (h *EnvHandle) ensureOwned() *metavar.Env {
	if h.owned == nil {
		h.owned = h.current().Clone()
	}
	return h.owned
}

// Fork returns a new handle reading through to this handle's current state,
// isolated so that writes through the fork never affect h unless promoted.
func (h *EnvHandle) Fork() *EnvHandle {
	return &EnvHandle{base: h.current()}
}

// Promote folds fork's writes (if it made any) into h.
func (h *EnvHandle) Promote(fork *EnvHandle) {
	if fork.owned != nil {
		h.owned = fork.owned
	}
}

// Env returns the handle's current, possibly-cloned environment.
func (h *EnvHandle) Env() *metavar.Env { return h.current() }

// InsertSingle binds a single capture, cloning on first write.
func (h *EnvHandle) InsertSingle(name string, node metavar.Node) bool {
	if name == "" {
		return true
	}
	if n, ok := h.current().GetSingle(name); ok {
		return n.Equal(node)
	}
	return h.ensureOwned().InsertSingle(name, node)
}

// InsertMulti binds a multi-capture, cloning on first write.
func (h *EnvHandle) InsertMulti(name string, nodes []metavar.Node) {
	if name == "" {
		return
	}
	h.ensureOwned().InsertMulti(name, nodes)
}

// InsertTransformed stores a computed transform value.
func (h *EnvHandle) InsertTransformed(name string, value []byte) {
	h.ensureOwned().InsertTransformed(name, value)
}

// AddLabel appends a secondary-highlight node.
func (h *EnvHandle) AddLabel(name string, node metavar.Node) {
	h.ensureOwned().AddLabel(name, node)
}
