package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slewConf struct {
	Rate   float64       `json:"rate"`
	Settle time.Duration `json:"settle"`
}

func TestRegistryCreateDecodes(t *testing.T) {
	reg := NewRegistry[slewConf]()
	require.NoError(t, reg.Register("slew", func(conf map[string]any) (slewConf, error) {
		var c slewConf
		err := Decode(conf, &c)
		return c, err
	}))
	got, err := reg.Create(ModuleConfig{Type: "slew", Conf: map[string]any{"rate": "2.5", "settle": "5s"}})
	require.NoError(t, err)
	assert.Equal(t, slewConf{Rate: 2.5, Settle: 5 * time.Second}, got)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	one := func(map[string]any) (int, error) { return 1, nil }
	require.NoError(t, reg.Register("b", one))
	require.NoError(t, reg.Register("a", one))
	assert.Error(t, reg.Register("c", nil))
	assert.Error(t, reg.Register("a", one))
	assert.Equal(t, []string{"a", "b"}, reg.Names())

	_, err := reg.Create(ModuleConfig{Type: "z"})
	assert.ErrorContains(t, err, `unknown module type "z" (known: a, b)`)
}

func TestMustRegister(t *testing.T) {
	reg := NewRegistry[int]()
	one := func(map[string]any) (int, error) { return 1, nil }
	MustRegister(reg.Register, "x", one)
	assert.Panics(t, func() { MustRegister(reg.Register, "x", one) })
}

func TestDecodeRejectsMismatch(t *testing.T) {
	var c slewConf
	assert.Error(t, Decode(map[string]any{"rate": "fast"}, &c))
}
