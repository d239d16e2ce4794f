package osmem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockMmapAndBind(t *testing.T) {
	m := NewMock(1)
	addr, err := m.Mmap(4)
	require.NoError(t, err)

	require.NoError(t, m.BindToNode(addr, 4, 2))
	require.Equal(t, 2, m.NodeOf(addr))
}

func TestMockMovePage(t *testing.T) {
	m := NewMock(1)
	addr, _ := m.Mmap(1)
	m.BindToNode(addr, 1, 0)

	node, err := m.MovePage(addr, 1)
	require.NoError(t, err)
	require.Equal(t, 1, node)
	require.Equal(t, 1, m.NodeOf(addr))
}

func TestMockMovePageFailure(t *testing.T) {
	m := NewMock(1)
	addr, _ := m.Mmap(1)
	m.BindToNode(addr, 1, 0)
	m.FailMoveTo = func(node int) bool { return node == 2 }

	_, err := m.MovePage(addr, 2)
	require.Error(t, err)
	require.Equal(t, 0, m.NodeOf(addr), "failed move must not change residency")
}

func TestMockTouchReflectsNode(t *testing.T) {
	m := NewMock(1)
	addr, _ := m.Mmap(1)
	m.BindToNode(addr, 1, 0)
	local := m.Touch(addr, false)

	m.BindToNode(addr, 1, 2)
	remote := m.Touch(addr, false)

	require.Greater(t, remote, local)
}
