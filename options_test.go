package flowmesh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultOptions_FailsValidationWithoutServers(t *testing.T) {
	o := DefaultOptions()
	err := o.Validate()
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindUsage, fe.Kind)
}

func TestOptions_ValidWithServers(t *testing.T) {
	o := DefaultOptions()
	WithServers("mesh://127.0.0.1:4222")(o)
	require.NoError(t, o.Validate())
}

func TestOptions_RejectsInvertedReconnectDelay(t *testing.T) {
	o := DefaultOptions()
	WithServers("mesh://127.0.0.1:4222")(o)
	WithReconnectDelay(5*1e9, 1*1e9)(o)
	require.Error(t, o.Validate())
}

func TestOptions_FunctionalOptionsApply(t *testing.T) {
	o := DefaultOptions()
	WithName("test-client")(o)
	WithMaxReconnects(10)(o)
	require.Equal(t, "test-client", o.Name)
	require.Equal(t, 10, o.MaxReconnects)
}
