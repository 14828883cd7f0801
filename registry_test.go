package bitfield

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRegistry(t *testing.T) {
	l := MustLayout("registry-test", FieldDecl{Name: "x", Spec: B(8)})
	t.Cleanup(func() { Unregister(l.Name()) })

	require.NoError(t, Register(l))
	require.NoError(t, Register(l))

	got, ok := Lookup("registry-test")
	require.True(t, ok)
	require.Same(t, l, got)
	got, ok = LookupID(l.ID())
	require.True(t, ok)
	require.Same(t, l, got)

	other := MustLayout("registry-test", FieldDecl{Name: "y", Spec: B(8)})
	require.ErrorIs(t, Register(other), ErrAlreadyRegistered)
	require.Panics(t, func() { MustRegister(other) })

	Unregister("registry-test")
	_, ok = Lookup("registry-test")
	require.False(t, ok)
	_, ok = LookupID(l.ID())
	require.False(t, ok)
}

func TestLoggerRecordsLayoutEvents(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	MustLayout("logged", FieldDecl{Name: "x", Spec: B(8)})
	_, _ = BuildLayout("rejected", FieldDecl{Name: "x", Spec: B(7)})

	require.Equal(t, 1, logs.FilterMessage("layout built").Len())
	require.Equal(t, 1, logs.FilterMessage("layout rejected").Len())
}
