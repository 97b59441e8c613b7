package featureflags

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_Booleans(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, "1"), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, "1"), name)
	}
}

func TestEnabled_Percentages(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, m.Enabled("always", ""))
	assert.False(t, m.Enabled("never", "42"))
	assert.False(t, m.Enabled("junk", "42"))
	assert.False(t, m.Enabled("canary", ""), "anonymous visitors are outside partial rollouts")

	first := m.Enabled("canary", "42")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", "42"))
	}

	enabled := 0
	for i := 1; i <= 1000; i++ {
		if m.Enabled("canary", strconv.Itoa(i)) {
			enabled++
		}
	}
	assert.Greater(t, enabled, 0)
	assert.Less(t, enabled, 1000)
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,Quote_Posts=ON, reposts = 20% ,google_signin=off,=on,x= ")

	assert.Equal(t, map[string]string{
		QuotePosts:   "on",
		Reposts:      "20%",
		GoogleSignIn: "off",
	}, m.Raw())

	snap := m.Snapshot("7")
	assert.Len(t, snap, 3)
	assert.True(t, snap[QuotePosts])
	assert.False(t, snap[GoogleSignIn])
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(QuotePosts, "1"))
}
