package encoding

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(sample{Name: "Dry Skin & Eczema <mild>", Score: 12.5})

	require.NoError(t, err)
	assert.Equal(t, `{"name":"Dry Skin & Eczema <mild>","score":12.5}`, string(data))
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]int{"a": 1})

	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(data))
}

func TestMarshal_Error(t *testing.T) {
	_, err := Marshal(map[string]interface{}{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Encode(&out, sample{Name: "x"}, false))
	require.NoError(t, Encode(&out, sample{Name: "y"}, true))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, `{"name":"x","score":0}`, lines[0])
	assert.Equal(t, "{", lines[1])
}

func TestMarshal_ResultsAreIndependent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([][]byte, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := Marshal(sample{Score: float64(i)})
			if err == nil {
				results[i] = data
			}
		}(i)
	}
	wg.Wait()

	for i, data := range results {
		expected, _ := Marshal(sample{Score: float64(i)})
		assert.Equal(t, string(expected), string(data))
	}
}
