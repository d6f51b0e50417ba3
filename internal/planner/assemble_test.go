package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dsquery/internal/ir"
)

func component(pos, alternatives int) SplitComponent {
	c := SplitComponent{SortPosition: pos}
	for i := 0; i < alternatives; i++ {
		c.Alternatives = append(c.Alternatives, FilterAlternativeSet{eq("p", ir.Int(int64(i)))})
	}
	return c
}

func rangeComponent(pos int) SplitComponent {
	return SplitComponent{
		SortPosition: pos,
		Alternatives: []FilterAlternativeSet{{lt("s", ir.String("m"))}, {gt("s", ir.String("m"))}},
	}
}

func modes(components []ExecutionComponent) []ExecutionMode {
	out := make([]ExecutionMode, len(components))
	for i, c := range components {
		out[i] = c.Mode
	}
	return out
}

func positions(components []ExecutionComponent) []int {
	out := make([]int, len(components))
	for i, c := range components {
		out[i] = c.SortPosition
	}
	return out
}

func TestAssemble(t *testing.T) {
	S, C := Sequential, Concurrent

	tests := []struct {
		name      string
		input     []SplitComponent
		sorts     int
		wantPos   []int
		wantModes []ExecutionMode
	}{
		{
			name:      "no sorts is all sequential",
			input:     []SplitComponent{component(NoSortPosition, 2), component(NoSortPosition, 3)},
			sorts:     0,
			wantPos:   []int{NoSortPosition, NoSortPosition},
			wantModes: []ExecutionMode{S, S},
		},
		{
			name:      "first sort position",
			input:     []SplitComponent{component(0, 2)},
			sorts:     1,
			wantPos:   []int{0},
			wantModes: []ExecutionMode{S},
		},
		{
			name:      "unsorted property merges when sorts exist",
			input:     []SplitComponent{component(NoSortPosition, 2)},
			sorts:     1,
			wantPos:   []int{NoSortPosition},
			wantModes: []ExecutionMode{C},
		},
		{
			name:      "second sort position alone merges",
			input:     []SplitComponent{component(1, 2)},
			sorts:     2,
			wantPos:   []int{1},
			wantModes: []ExecutionMode{C},
		},
		{
			name:      "consecutive positions stay sequential",
			input:     []SplitComponent{component(1, 2), component(0, 2)},
			sorts:     2,
			wantPos:   []int{0, 1},
			wantModes: []ExecutionMode{S, S},
		},
		{
			name:      "same position twice",
			input:     []SplitComponent{component(0, 2), component(0, 2)},
			sorts:     1,
			wantPos:   []int{0, 0},
			wantModes: []ExecutionMode{S, S},
		},
		{
			name:      "range branches merge the next position",
			input:     []SplitComponent{component(1, 2), rangeComponent(0)},
			sorts:     2,
			wantPos:   []int{0, 1},
			wantModes: []ExecutionMode{S, C},
		},
		{
			name:      "range branches after fixed values",
			input:     []SplitComponent{component(0, 2), rangeComponent(1), component(2, 2)},
			sorts:     3,
			wantPos:   []int{0, 1, 2},
			wantModes: []ExecutionMode{S, S, C},
		},
		{
			name:      "range branches keep the same position sequential",
			input:     []SplitComponent{rangeComponent(0), component(0, 2)},
			sorts:     1,
			wantPos:   []int{0, 0},
			wantModes: []ExecutionMode{S, S},
		},
		{
			name:      "gap forces the rest concurrent",
			input:     []SplitComponent{component(2, 2), component(NoSortPosition, 2), component(0, 2), component(3, 2)},
			sorts:     4,
			wantPos:   []int{0, 2, 3, NoSortPosition},
			wantModes: []ExecutionMode{S, C, C, C},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Assemble(tt.input, tt.sorts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, positions(got))
			assert.Equal(t, tt.wantModes, modes(got))
		})
	}
}

func TestAssembleCap(t *testing.T) {
	_, err := Assemble([]SplitComponent{component(NoSortPosition, 30)}, 1)
	assert.NoError(t, err, "exactly the cap is allowed")

	_, err = Assemble([]SplitComponent{component(NoSortPosition, 31)}, 1)
	require.Error(t, err)
	assert.True(t, IsTooManyAlternatives(err))

	_, err = Assemble([]SplitComponent{component(NoSortPosition, 6), component(NoSortPosition, 6)}, 1)
	var tooMany *TooManyAlternativesError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 36, tooMany.Alternatives)

	_, err = Assemble([]SplitComponent{component(0, 31), component(0, 31)}, 1)
	assert.NoError(t, err, "sequential components are not capped")

	_, err = Assemble([]SplitComponent{component(NoSortPosition, 31), component(NoSortPosition, 31)}, 0)
	assert.NoError(t, err, "no sorts means nothing merges")
}
