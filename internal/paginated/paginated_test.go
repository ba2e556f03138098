package paginated

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	p := Empty[string]()
	assert.Equal(t, 0, p.Len())
	assert.False(t, p.HasMore())
	assert.Equal(t, "", p.Token())
	assert.Equal(t, Empty[string](), p)
}

func TestNew(t *testing.T) {
	assert.Nil(t, New([]int{1}, "").NextToken)

	p := New([]int{1, 2}, "t1")
	require.NotNil(t, p.NextToken)
	assert.Equal(t, "t1", p.Token())
	assert.True(t, p.HasMore())
}

func TestConcat(t *testing.T) {
	a := New([]string{"A", "B", "C"}, "t1")
	b := New([]string{"D", "E"}, "")

	got := Concat(a, b)

	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, got.Page)
	assert.Nil(t, got.NextToken)
	assert.Equal(t, []string{"A", "B", "C"}, a.Page, "inputs are not modified")
}

func TestConcatTakesSecondToken(t *testing.T) {
	got := Concat(New([]int{1}, "t1"), New([]int{2}, "t2"))
	assert.Equal(t, "t2", got.Token())
}

func TestConcatIdentity(t *testing.T) {
	a := New([]string{"A", "B"}, "t1")

	t.Run("right identity keeps items", func(t *testing.T) {
		got := Concat(a, Empty[string]())
		assert.Equal(t, a.Page, got.Page)
	})

	t.Run("right identity on a terminal page", func(t *testing.T) {
		last := New([]string{"A", "B"}, "")
		assert.Equal(t, last, Concat(last, Empty[string]()))
	})

	t.Run("left identity", func(t *testing.T) {
		got := Concat(Empty[string](), a)
		assert.Equal(t, a.Page, got.Page)
		assert.Equal(t, a.Token(), got.Token())
	})
}

func TestConcatDoesNotDeduplicate(t *testing.T) {
	got := Concat(New([]string{"A"}, "t"), New([]string{"A"}, ""))
	assert.Equal(t, []string{"A", "A"}, got.Page)
}

func TestTokenIsCopied(t *testing.T) {
	b := New([]int{2}, "t2")
	got := Concat(New([]int{1}, "t1"), b)
	*b.NextToken = "changed"
	assert.Equal(t, "t2", got.Token())
}
