package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/types"
)

func TestJoinLatticeTable(t *testing.T) {
	cases := []struct {
		a, b, want types.Shape
	}{
		{types.One, types.One, types.One},
		{types.One, types.Optional, types.Optional},
		{types.Optional, types.One, types.Optional},
		{types.One, types.Many, types.Many},
		{types.Many, types.One, types.Many},
		{types.Many, types.Many1, types.Many1},
		{types.Many1, types.Many, types.Many1},
		{types.Optional, types.Many, types.Many},
		{types.Optional, types.Many1, types.Many},
		{types.Many1, types.Many1, types.Many1},
	}
	for _, c := range cases {
		require.Equal(t, c.want, types.Join(c.a, c.b), "Join(%s, %s)", c.a, c.b)
	}
}
