package websocket

import (
	"sync"
	"testing"

	"haultrack/internal/general/logger"

	"github.com/stretchr/testify/assert"
)

func TestGroupRegistry_JoinLeave(t *testing.T) {
	registry := NewGroupRegistry(logger.New("test"))

	a := newMember(nil)
	b := newMember(nil)

	registry.Join("driver_1", a)
	registry.Join("driver_1", b)
	assert.Equal(t, 2, registry.MemberCount("driver_1"))

	registry.Leave("driver_1", a)
	assert.Equal(t, 1, registry.MemberCount("driver_1"))

	// leaving twice is a no-op
	registry.Leave("driver_1", a)
	assert.Equal(t, 1, registry.MemberCount("driver_1"))

	// leaving a group that does not exist is a no-op
	registry.Leave("driver_unknown", a)

	registry.Leave("driver_1", b)
	assert.Equal(t, 0, registry.MemberCount("driver_1"))
}

func TestGroupRegistry_GroupsAreIndependent(t *testing.T) {
	registry := NewGroupRegistry(logger.New("test"))

	a := newMember(nil)
	b := newMember(nil)

	registry.Join("driver_1", a)
	registry.Join("driver_2", b)

	assert.Equal(t, 1, registry.MemberCount("driver_1"))
	assert.Equal(t, 1, registry.MemberCount("driver_2"))

	registry.Leave("driver_1", a)
	assert.Equal(t, 0, registry.MemberCount("driver_1"))
	assert.Equal(t, 1, registry.MemberCount("driver_2"))
}

func TestGroupRegistry_ConcurrentJoinLeave(t *testing.T) {
	registry := NewGroupRegistry(logger.New("test"))

	const n = 64
	members := make([]*Member, n)
	for i := range members {
		members[i] = newMember(nil)
	}

	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(1)
		go func(m *Member) {
			defer wg.Done()
			registry.Join("driver_1", m)
		}(m)
	}
	wg.Wait()
	assert.Equal(t, n, registry.MemberCount("driver_1"))

	for _, m := range members {
		wg.Add(1)
		go func(m *Member) {
			defer wg.Done()
			registry.Leave("driver_1", m)
		}(m)
	}
	wg.Wait()
	assert.Equal(t, 0, registry.MemberCount("driver_1"))
}
