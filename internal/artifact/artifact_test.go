package artifact

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/wellmeet-pipeline/internal/objstore"
)

type item struct {
	ID string `json:"id"`
}

func TestWriteGzipJSON_ReadDetectsCompression(t *testing.T) {
	store := objstore.NewLocal(t.TempDir(), "b")
	ctx := context.Background()
	loc := objstore.Location{Key: "embedding/x.json.gz"}
	in := []item{{ID: "a"}, {ID: "b"}}

	raw, compressed, err := WriteGzipJSON(ctx, store, loc, in)
	require.NoError(t, err)
	require.Greater(t, raw, 0)
	require.Greater(t, compressed, 0)

	data, err := ReadBytes(ctx, store, loc)
	require.NoError(t, err)
	require.Equal(t, `[{"id":"a"},{"id":"b"}]`, string(data))

	var out []item
	require.NoError(t, Read(ctx, store, loc, &out))
	require.Equal(t, in, out)
}

func TestRead_PlainJSON(t *testing.T) {
	store := objstore.NewLocal(t.TempDir(), "b")
	ctx := context.Background()
	loc := objstore.Location{Key: "category/x.json"}
	_, err := WriteJSON(ctx, store, loc, []item{{ID: "a"}})
	require.NoError(t, err)

	var out []item
	require.NoError(t, Read(ctx, store, loc, &out))
	require.Equal(t, []item{{ID: "a"}}, out)
}

func TestEncodeDecodeLines(t *testing.T) {
	data, err := EncodeLines([]item{{ID: "a<b"}, {ID: "c"}})
	require.NoError(t, err)
	require.Equal(t, "{\"id\":\"a<b\"}\n{\"id\":\"c\"}\n", string(data))

	var got []string
	var bad []int
	input := "{\"id\":\"a\"}\n\n not json \n{\"id\":\"c\"}"
	err = DecodeLines(strings.NewReader(input), func(it item) error {
		got = append(got, it.ID)
		return nil
	}, func(line int, err error) {
		bad = append(bad, line)
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, got)
	require.Equal(t, []int{3}, bad)
}

func TestDecodeLines_StrictFailsOnBadLine(t *testing.T) {
	err := DecodeLines(bytes.NewReader([]byte("oops\n")), func(it item) error { return nil }, nil)
	require.Error(t, err)
}
