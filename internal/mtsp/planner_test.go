package mtsp_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"mtspnav/internal/mtsp"
)

func TestMatrixBuilderQueriesEveryOrderedPair(t *testing.T) {
	m := randomMatrix(5, 1)
	m[1][3] = mtsp.Unreachable
	r := newMatrixRouter(m)
	b := &mtsp.MatrixBuilder[int]{Router: r, Workers: 3}

	got, st, err := b.Build(context.Background(), mtsp.ProfileCar, indices(5))
	require.NoError(t, err)
	assert.Equal(t, 20, st.Pairs)
	assert.Equal(t, 1, st.Unreachable)
	assert.EqualValues(t, 20, r.calls.Load())
	assert.Equal(t, m, got)
	for i := range got {
		assert.Equal(t, 0.0, got[i][i])
	}
}

func TestMatrixBuilderSymmetricMirrors(t *testing.T) {
	m := lineMatrix(6)
	r := newMatrixRouter(m)
	b := &mtsp.MatrixBuilder[int]{Router: r, Symmetric: true, Limiter: rate.NewLimiter(rate.Inf, 1)}

	got, st, err := b.Build(context.Background(), mtsp.ProfileBike, indices(6))
	require.NoError(t, err)
	assert.Equal(t, 15, st.Pairs)
	assert.EqualValues(t, 15, r.calls.Load())
	assert.Equal(t, m, got)
	for pair := range r.seenPairs {
		assert.Less(t, pair[0], pair[1])
	}
}

func TestMatrixBuilderPropagatesRouterError(t *testing.T) {
	boom := errors.New("router down")
	r := newMatrixRouter(uniformMatrix(3, 1))
	r.costErr = boom
	b := &mtsp.MatrixBuilder[int]{Router: r}

	_, _, err := b.Build(context.Background(), mtsp.ProfileCar, indices(3))
	require.ErrorIs(t, err, boom)
	var rerr *mtsp.RouterError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "cost", rerr.Op)
}

func TestMatrixBuilderRejectsInvalidCosts(t *testing.T) {
	for name, w := range map[string]float64{"negative": -3, "nan": math.NaN(), "negative infinity": math.Inf(-1)} {
		t.Run(name, func(t *testing.T) {
			m := uniformMatrix(3, 1)
			m[0][2] = w
			b := &mtsp.MatrixBuilder[int]{Router: newMatrixRouter(m)}

			_, _, err := b.Build(context.Background(), mtsp.ProfileCar, indices(3))
			var rerr *mtsp.RouterError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, 0, rerr.From)
			assert.Equal(t, 2, rerr.To)
			assert.NotErrorIs(t, err, mtsp.ErrInvalidInput)
		})
	}
}

func TestAssemblerClosesEveryTour(t *testing.T) {
	m := lineMatrix(5)
	r := newMatrixRouter(m)
	a := &mtsp.Assembler[int]{Router: r, Workers: 2}
	sol := mtsp.Solution{Tours: [][]int{{0, 1, 2}, {3, 4}}}

	routes, err := a.Assemble(context.Background(), mtsp.ProfileCar, indices(5), sol)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	first := routes[0]
	assert.Equal(t, []int{0, 1, 2}, first.Order)
	require.Len(t, first.Legs, 3)
	assert.Equal(t, 2, first.Legs[2].From)
	assert.Equal(t, 0, first.Legs[2].To)
	assert.Equal(t, []mtsp.Coord{coord(0), coord(1), coord(2), coord(0)}, first.Waypoints)
	assert.Equal(t, 4.0, first.Cost)
	assert.Equal(t, 4000.0, first.DistanceM)

	second := routes[1]
	assert.Equal(t, 1, second.Vehicle)
	assert.Len(t, second.Legs, 2)
	assert.Equal(t, 2.0, second.Cost)
}

func TestAssemblerSinglePointTour(t *testing.T) {
	r := newMatrixRouter(lineMatrix(2))
	a := &mtsp.Assembler[int]{Router: r}
	routes, err := a.Assemble(context.Background(), mtsp.ProfileCar, indices(2), mtsp.Solution{Tours: [][]int{{0}, {1}}})
	require.NoError(t, err)
	for i, rt := range routes {
		require.Len(t, rt.Legs, 1)
		assert.Equal(t, rt.Legs[0].From, rt.Legs[0].To)
		assert.Equal(t, []mtsp.Coord{coord(i)}, rt.Waypoints)
		assert.Equal(t, 0.0, rt.Cost)
	}
}

func TestAssemblerReportsStaleEdge(t *testing.T) {
	r := newMatrixRouter(lineMatrix(3))
	r.pathBlocked = map[[2]int]bool{{2, 0}: true}
	a := &mtsp.Assembler[int]{Router: r}

	_, err := a.Assemble(context.Background(), mtsp.ProfileCar, indices(3), mtsp.Solution{Tours: [][]int{{0, 1, 2}}})
	require.ErrorIs(t, err, mtsp.ErrAssembly)
	assert.NotErrorIs(t, err, mtsp.ErrInfeasible)
	var aerr *mtsp.AssemblyError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, 0, aerr.Tour)
	assert.Equal(t, 2, aerr.From)
	assert.Equal(t, 0, aerr.To)
}

func TestPlannerSolve(t *testing.T) {
	m := randomMatrix(10, 4)
	r := newMatrixRouter(m)
	p := mtsp.NewPlanner[int](r, mtsp.PlannerConfig{Workers: 4})

	var events []mtsp.Event
	routes, rep, err := p.SolveObserved(context.Background(), mtsp.ProfileCar, indices(10), 3, func(ev mtsp.Event) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.Len(t, routes, 3)

	seen := map[int]bool{}
	total := 0.0
	for _, rt := range routes {
		assert.Len(t, rt.Legs, len(rt.Order))
		for i, leg := range rt.Legs {
			assert.Equal(t, rt.Order[i], leg.From)
			assert.Equal(t, rt.Order[(i+1)%len(rt.Order)], leg.To)
		}
		for _, i := range rt.Order {
			assert.False(t, seen[i])
			seen[i] = true
		}
		total += rt.Cost
	}
	assert.Len(t, seen, 10)
	assert.InDelta(t, rep.TotalCost, total, 1e-9)

	assert.Equal(t, mtsp.StrategyNN2Opt, rep.Strategy)
	assert.Equal(t, mtsp.ObjectiveBalanced, rep.Objective)
	assert.Equal(t, 90, rep.MatrixPairs)
	assert.Len(t, rep.TourCosts, 3)
	assert.Equal(t, mtsp.PhaseMatrix, events[0].Phase)
	assert.Equal(t, mtsp.PhaseAssembled, events[len(events)-1].Phase)
}

func TestPlannerRejectsBeforeRouting(t *testing.T) {
	r := newMatrixRouter(uniformMatrix(3, 1))
	p := mtsp.NewPlanner[int](r, mtsp.PlannerConfig{})

	_, _, err := p.Solve(context.Background(), mtsp.ProfileCar, indices(1), 1)
	assert.ErrorIs(t, err, mtsp.ErrInvalidInput)
	_, _, err = p.Solve(context.Background(), mtsp.ProfileCar, indices(3), 5)
	assert.ErrorIs(t, err, mtsp.ErrInvalidInput)
	_, _, err = p.Solve(context.Background(), mtsp.ProfileCar, indices(3), 0)
	assert.ErrorIs(t, err, mtsp.ErrInvalidInput)
	assert.Zero(t, r.calls.Load())
}

func TestPlannerInfeasibleReport(t *testing.T) {
	m := uniformMatrix(3, 1)
	m[0][1], m[1][0] = mtsp.Unreachable, mtsp.Unreachable
	p := mtsp.NewPlanner[int](newMatrixRouter(m), mtsp.PlannerConfig{})

	_, rep, err := p.Solve(context.Background(), mtsp.ProfileCar, indices(3), 1)
	require.ErrorIs(t, err, mtsp.ErrInfeasible)
	assert.Equal(t, 2, rep.Unreachable)
}

func TestPlannerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := mtsp.NewPlanner[int](newMatrixRouter(uniformMatrix(4, 1)), mtsp.PlannerConfig{})
	_, _, err := p.Solve(ctx, mtsp.ProfileCar, indices(4), 2)
	assert.ErrorIs(t, err, context.Canceled)
}
