package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	labels []string
	begun  int
}

type beginAction struct {
	Base
}

func (a *beginAction) BeginRun(_ int, l *recorder) error {
	l.begun++
	return nil
}

func insertStep(
	t *testing.T, reg *Registry, label string, order Order, err error,
) {
	id := reg.NextId()
	a := NewStaticStep(id, label, "test "+label, order,
		func(_ int, l *recorder) error {
			l.labels = append(l.labels, label)
			return err
		})
	require.NoError(t, reg.Insert(a))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	insertStep(t, reg, "a", OrderPre, nil)
	insertStep(t, reg, "b", OrderPre, nil)

	id, ok := reg.Find("b")
	assert.True(t, ok)
	assert.Equal(t, ActionId(1), id)
	assert.Equal(t, "b", reg.Label(id))
	_, ok = reg.Find("c")
	assert.False(t, ok)

	dup := NewStaticStep(reg.NextId(), "a", "", OrderPre,
		func(int, *recorder) error { return nil })
	assert.Error(t, reg.Insert(dup))

	badId := NewStaticStep(ActionId(7), "z", "", OrderPre,
		func(int, *recorder) error { return nil })
	assert.Error(t, reg.Insert(badId))

	reg.Freeze()
	late := NewStaticStep(reg.NextId(), "late", "", OrderPre,
		func(int, *recorder) error { return nil })
	assert.True(t, errors.Is(reg.Insert(late), ErrFrozen))
	assert.Equal(t, 2, reg.Size())
}

func TestSequenceOrder(t *testing.T) {
	reg := NewRegistry()
	insertStep(t, reg, "cleanup", OrderEnd, nil)
	insertStep(t, reg, "along", OrderAlong, nil)
	insertStep(t, reg, "pre1", OrderPre, nil)
	insertStep(t, reg, "init", OrderStart, nil)
	insertStep(t, reg, "pre2", OrderPre, nil)
	require.NoError(t, reg.Insert(&beginAction{NewBase(reg.NextId(), "begin", "")}))

	_, err := NewSequence[int, *recorder](reg, Options{})
	require.Error(t, err, "registry is not frozen")

	reg.Freeze()
	seq, err := NewSequence[int, *recorder](reg, Options{})
	require.NoError(t, err)

	l := &recorder{}
	require.NoError(t, seq.BeginRun(0, l))
	assert.Equal(t, 1, l.begun)

	require.NoError(t, seq.Step(0, l))
	assert.Equal(t, []string{"init", "pre1", "pre2", "along", "cleanup"}, l.labels)
	assert.Len(t, seq.Actions(), 5)
	assert.Empty(t, seq.Times())
}

func TestSequenceError(t *testing.T) {
	sentinel := errors.New("broken")
	reg := NewRegistry()
	insertStep(t, reg, "first", OrderStart, nil)
	insertStep(t, reg, "bad", OrderPre, sentinel)
	insertStep(t, reg, "never", OrderEnd, nil)
	reg.Freeze()

	seq, err := NewSequence[int, *recorder](reg, Options{ActionTimes: true})
	require.NoError(t, err)

	l := &recorder{}
	err = seq.Step(0, l)
	assert.True(t, errors.Is(err, sentinel))
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, []string{"first", "bad"}, l.labels)
}

func TestSequenceTimesDontChangeBehavior(t *testing.T) {
	run := func(timed bool) ([]string, map[string]float64) {
		reg := NewRegistry()
		insertStep(t, reg, "x", OrderPost, nil)
		insertStep(t, reg, "y", OrderPre, nil)
		reg.Freeze()
		seq, err := NewSequence[int, *recorder](reg, Options{ActionTimes: timed})
		require.NoError(t, err)

		l := &recorder{}
		require.NoError(t, seq.Warmup(0, l))
		for i := 0; i < 3; i++ { require.NoError(t, seq.Step(0, l)) }
		return l.labels, seq.Times()
	}

	untimed, noTimes := run(false)
	timed, times := run(true)
	assert.Equal(t, untimed, timed)
	assert.Empty(t, noTimes)
	assert.Len(t, times, 2)
	assert.Contains(t, times, "x")
}

func TestParseOrder(t *testing.T) {
	for o := OrderStart; o < EndOrder; o++ {
		parsed, err := ParseOrder(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, parsed)
	}
	_, err := ParseOrder("sideways")
	assert.Error(t, err)
}
