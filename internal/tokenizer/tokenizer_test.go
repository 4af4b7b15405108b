package tokenizer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tok, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEncoding, tok.Name())

	_, err = New("not_an_encoding")
	assert.ErrorContains(t, err, "not_an_encoding")
}

func TestCount(t *testing.T) {
	tok, err := New("cl100k_base")
	require.NoError(t, err)

	assert.Equal(t, 0, tok.Count(""))
	assert.Equal(t, 2, tok.Count("hello world"))
}

func TestCount_Concurrent(t *testing.T) {
	tok, err := New("cl100k_base")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 2, tok.Count("hello world"))
		}()
	}
	wg.Wait()
}
