package flowmesh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSubject_RejectsWildcards(t *testing.T) {
	require.Error(t, validateSubject("orders.*"))
	require.Error(t, validateSubject("orders.>"))
}

func TestValidateSubject_RejectsEmptyTokens(t *testing.T) {
	require.Error(t, validateSubject(""))
	require.Error(t, validateSubject("orders..new"))
	require.Error(t, validateSubject(".orders"))
}

func TestValidateSubject_AcceptsPlainSubject(t *testing.T) {
	require.NoError(t, validateSubject("orders.new"))
	require.NoError(t, validateSubject("a"))
}

func TestValidateSubscribeSubject_AcceptsWildcards(t *testing.T) {
	require.NoError(t, validateSubscribeSubject("orders.*"))
	require.NoError(t, validateSubscribeSubject("orders.>"))
	require.NoError(t, validateSubscribeSubject(">"))
}

func TestValidateSubscribeSubject_RejectsMidPatternGreaterThan(t *testing.T) {
	require.Error(t, validateSubscribeSubject("orders.>.new"))
}
