package cli_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/cli"
)

func TestRenderDiffProducesUnifiedDiffMarkers(t *testing.T) {
	out, err := cli.RenderDiff("{\"a\":1}\n", "{\"a\":2}\n", "result.json")
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "-{\"a\":1}"))
	require.True(t, strings.Contains(out, "+{\"a\":2}"))
}

func TestRenderDiffEmptyForIdenticalInput(t *testing.T) {
	out, err := cli.RenderDiff("same\n", "same\n", "result.json")
	require.NoError(t, err)
	require.Empty(t, out)
}
