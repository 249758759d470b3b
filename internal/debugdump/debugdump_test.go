package debugdump

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTableWritesOutput(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, map[string]int{"a": 1})
	require.NotEmpty(t, buf.String())
}

func TestSdumpWritesOutput(t *testing.T) {
	out := Sdump([]int{1, 2, 3})
	require.NotEmpty(t, out)
}
