package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingCloser struct {
	order *[]int
	id    int
	err   error
}

func (c recordingCloser) Close() error {
	*c.order = append(*c.order, c.id)
	return c.err
}

func TestCloseAll_ReverseOrder(t *testing.T) {
	var order []int
	RegisterCloser(recordingCloser{order: &order, id: 1})
	RegisterCloser(recordingCloser{order: &order, id: 2, err: errors.New("boom")})
	RegisterCloser(recordingCloser{order: &order, id: 3})

	CloseAll()
	assert.Equal(t, []int{3, 2, 1}, order)

	CloseAll()
	assert.Len(t, order, 3, "list is cleared after CloseAll")
}

func TestUserHome(t *testing.T) {
	assert.NotEmpty(t, UserHome())
}

func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "never") })
	assert.PanicsWithValue(t, "assertion failed: ttl 0", func() { Assert(false, "ttl %d", 0) })
}
