package arbiter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bus_fabric_sim/core"
)

func TestPolicyByName(t *testing.T) {
	cases := []struct {
		name   string
		params Params
		want   string
	}{
		{name: "rr", want: PolicyRoundRobin},
		{name: "Round-Robin", want: PolicyRoundRobin},
		{name: "priority", params: Params{Priorities: []int{1, 2, 3}}, want: PolicyPriority},
		{name: "priority", want: PolicyPriority},
		{name: "wrr", params: Params{Weights: []int{2, 1, 1}}, want: PolicyWeightedRoundRobin},
		{name: "weighted", want: PolicyWeightedRoundRobin},
		{name: "fcfs", want: PolicyFCFS},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := PolicyByName(tc.name, 3, tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.Name())
			assert.Equal(t, 3, p.Size())
		})
	}
}

func TestPolicyByNameErrors(t *testing.T) {
	cases := []struct {
		label  string
		name   string
		n      int
		params Params
	}{
		{label: "unknown", name: "lottery", n: 2},
		{label: "size", name: "rr", n: 0},
		{label: "too many", name: "rr", n: MaxRequesters + 1},
		{label: "priority length", name: "priority", n: 2, params: Params{Priorities: []int{1}}},
		{label: "weight length", name: "wrr", n: 2, params: Params{Weights: []int{1, 1, 1}}},
		{label: "zero weight", name: "wrr", n: 2, params: Params{Weights: []int{1, 0}}},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			_, err := PolicyByName(tc.name, tc.n, tc.params)
			assert.True(t, errors.Is(err, core.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestMask(t *testing.T) {
	m := MaskOf(0, 3, 63)
	assert.True(t, m.Has(3))
	assert.False(t, m.Has(2))
	assert.False(t, m.Has(64))
	assert.Equal(t, 3, m.Count())
	assert.Equal(t, 2, m.Without(63).Count())
	assert.True(t, Mask(0).Empty())
	assert.Equal(t, Mask(0xF), FullMask(4))
	assert.Equal(t, ^Mask(0), FullMask(64))
}
