package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/bizobj/internal/bo/business"
	"github.com/conduit-lang/bizobj/internal/viewmodel"
)

func newRuntime(t *testing.T, dir Directory) *business.Runtime {
	t.Helper()
	rt := business.NewRuntime(
		business.WithAsyncWorkers(2, 16),
		business.WithServices(dir),
		business.WithPollInterval(time.Millisecond),
	)
	t.Cleanup(rt.Close)
	return rt
}

func waitIdle(t *testing.T, m viewmodel.Model) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.WaitIdle(ctx))
}

func TestTypesAreRegistered(t *testing.T) {
	for _, name := range []string{"Person", "Line", "Order"} {
		typ, ok := business.LookupType(name)
		require.True(t, ok, name)
		assert.Equal(t, name, typ.Name())
	}
}

func TestPerson_NewIsChecked(t *testing.T) {
	p := NewPerson(newRuntime(t, nil))
	waitIdle(t, p)

	assert.True(t, p.IsNew())
	assert.False(t, p.IsValid())
	assert.Equal(t, "Name is required\nAge must be positive", p.ErrorText())

	require.NoError(t, p.Set("Name", "Ann"))
	require.NoError(t, p.Set("Age", 150))
	worst, ok := p.Worst("Age")
	require.True(t, ok)
	assert.Equal(t, "Age is unusually high", worst.Message)
	assert.True(t, p.IsValid())
}

func TestPerson_EmailAvailable(t *testing.T) {
	dir := NewMemoryDirectory(0, "Taken@Example.com")
	p := NewPerson(newRuntime(t, dir))
	require.NoError(t, p.Set("Name", "Ann"))
	require.NoError(t, p.Set("Age", 30))
	waitIdle(t, p)

	require.NoError(t, p.Set("Email", "taken@example.com"))
	assert.True(t, p.IsPropertyBusy("Email"))
	assert.False(t, p.IsSavable())
	waitIdle(t, p)

	assert.False(t, p.IsValid())
	assert.Equal(t, "Email address taken@example.com is already registered", p.ErrorText())

	require.NoError(t, p.Set("Email", "free@example.com"))
	waitIdle(t, p)
	assert.True(t, p.IsValid())
	assert.True(t, p.IsSavable())
}

func TestPerson_EmailAvailableWithoutDirectory(t *testing.T) {
	p := NewPerson(newRuntime(t, nil))
	require.NoError(t, p.Set("Email", "taken@example.com"))
	waitIdle(t, p)
	_, broken := p.Worst("Email")
	assert.False(t, broken)
}

func TestMemoryDirectory_HonorsContext(t *testing.T) {
	dir := NewMemoryDirectory(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := dir.EmailTaken(ctx, "a@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrder_LinesAndTotal(t *testing.T) {
	order, err := NewOrder(newRuntime(t, nil))
	require.NoError(t, err)

	_, err = AddLine(order, "apple", 3, 0.5)
	require.NoError(t, err)
	_, err = AddLine(order, "pear", 2, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, Total(order), 0.0001)

	bad, err := AddLine(order, "", 0, 1)
	require.NoError(t, err)
	assert.False(t, bad.IsValid())
	assert.False(t, order.IsValid())
}

func TestRepository_SavesGraph(t *testing.T) {
	rt := newRuntime(t, nil)
	repo := NewRepository()

	order, err := NewOrder(rt)
	require.NoError(t, err)
	require.NoError(t, order.Set("Number", "ORD-7"))
	_, err = AddLine(order, "apple", 1, 1)
	require.NoError(t, err)
	second, err := AddLine(order, "pear", 1, 1)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), order))
	assert.Equal(t, 4, repo.Len(), "order, customer and two lines")

	rec, ok := repo.Get(order.ID())
	require.True(t, ok)
	assert.Equal(t, "Order", rec.Type)
	assert.Equal(t, "ORD-7", rec.Values["Number"])
	assert.NotContains(t, rec.Values, "Lines")
	assert.Len(t, repo.Children(order.ID()), 3)

	order.MarkOld()
	lines, err := order.Children("Lines")
	require.NoError(t, err)
	assert.True(t, lines.Remove(second))
	require.NoError(t, repo.Save(context.Background(), order))
	assert.Equal(t, 3, repo.Len())
	_, ok = repo.Get(second.ID())
	assert.False(t, ok)

	order.MarkDeleted()
	require.NoError(t, repo.Save(context.Background(), order))
	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, 3, repo.Saves())
}

type otherModel struct {
	viewmodel.Model
}

func TestRepository_RejectsForeignModels(t *testing.T) {
	err := NewRepository().Save(context.Background(), otherModel{})
	assert.ErrorContains(t, err, "cannot save")
}

func TestWalkthrough(t *testing.T) {
	dir := NewMemoryDirectory(time.Millisecond, "taken@example.com")
	repo := NewRepository()
	steps := NewWalkthrough(newRuntime(t, dir), repo).Run(context.Background())

	require.Len(t, steps, 5)
	for _, s := range steps {
		assert.NoError(t, s.Err, s.Name)
		assert.NotEmpty(t, s.Notes, s.Name)
	}

	assert.Equal(t, []string{
		`Age=-5: error "Age must be positive", valid=false`,
		`Age=150: warning "Age is unusually high", valid=true`,
		`Age=30: no broken rules, valid=true`,
	}, steps[0].Notes)

	assert.Equal(t, []string{
		`level 2: Name="" valid=false`,
		`cancel: level 1 Name="Bob" valid=true`,
		`apply: level 0 Name="Bob"`,
	}, steps[1].Notes)

	assert.Contains(t, steps[2].Notes[0], "busy=true")
	assert.Contains(t, steps[2].Notes[1], "is already registered")

	assert.Equal(t, "cancel: 2 lines, total 3.00, valid=true dirty=false", steps[3].Notes[len(steps[3].Notes)-1])

	save := steps[4].Notes
	assert.Contains(t, save[0], "first attempt")
	assert.Equal(t, "saved: new=false dirty=false records=3", save[len(save)-1])
	assert.Equal(t, 1, repo.Saves())
}
