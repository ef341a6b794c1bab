package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyConfig struct {
	MaxLevel int  `json:"max_level"`
	Products bool `json:"products"`
}

func mustKey(t *testing.T, parts KeyParts) string {
	t.Helper()
	key, err := Key(parts)
	require.NoError(t, err)
	return key
}

func TestKey_GroupsAreASet(t *testing.T) {
	base := KeyParts{Config: keyConfig{MaxLevel: 2}, Root: 5, Host: "shop.example", Language: "de"}

	a, b := base, base
	a.Groups = []string{"wholesale", "staff"}
	b.Groups = []string{" staff", "wholesale", "staff", ""}

	assert.Equal(t, mustKey(t, a), mustKey(t, b))
	assert.True(t, strings.HasPrefix(mustKey(t, a), "nav:"))
}

func TestKey_DistinguishesInputs(t *testing.T) {
	base := KeyParts{Config: keyConfig{MaxLevel: 2}, Root: 5, Host: "shop.example", Language: "de"}
	key := mustKey(t, base)

	variants := map[string]func(p *KeyParts){
		"root":     func(p *KeyParts) { p.Root = 6 },
		"config":   func(p *KeyParts) { p.Config = keyConfig{MaxLevel: 2, Products: true} },
		"groups":   func(p *KeyParts) { p.Groups = []string{"staff"} },
		"host":     func(p *KeyParts) { p.Host = "b2b.example" },
		"language": func(p *KeyParts) { p.Language = "en" },
	}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			assert.NotEqual(t, key, mustKey(t, p))
		})
	}
}

func TestKey_HostIsCaseInsensitive(t *testing.T) {
	a := KeyParts{Root: 5, Host: "Shop.Example"}
	b := KeyParts{Root: 5, Host: "shop.example "}

	assert.Equal(t, mustKey(t, a), mustKey(t, b))
}

func TestKey_UnencodableConfig(t *testing.T) {
	_, err := Key(KeyParts{Config: func() {}})

	assert.Error(t, err)
}
