package bitfield

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Layouts registered here are process-wide read-only state, resolvable by
// name or by ID (as carried in compactwire frames).
var (
	byName = xsync.NewMapOf[string, *Layout]()
	byID   = xsync.NewMapOf[uint64, *Layout]()
)

// Register publishes l. Registering the same layout twice is a no-op; a
// different layout under a taken name fails with ErrAlreadyRegistered.
func Register(l *Layout) error {
	actual, loaded := byName.LoadOrStore(l.name, l)
	if loaded && actual.id != l.id {
		return fmt.Errorf("bitfield: %s: %w", l.name, ErrAlreadyRegistered)
	}
	byID.Store(l.id, l)
	if !loaded {
		Logger().Debug("layout registered", zap.String("layout", l.name), zap.Uint64("id", l.id))
	}
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(l *Layout) *Layout {
	if err := Register(l); err != nil {
		panic(err)
	}
	return l
}

func Lookup(name string) (*Layout, bool) {
	return byName.Load(name)
}

func LookupID(id uint64) (*Layout, bool) {
	return byID.Load(id)
}

// Unregister removes the layout registered under name.
func Unregister(name string) {
	if l, ok := byName.LoadAndDelete(name); ok {
		byID.Delete(l.id)
	}
}
