package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadEvent(t *testing.T) {
	event, err := readEvent("", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(event))

	event, err = readEvent("-", strings.NewReader(`{"S3_KEY":"a1"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"S3_KEY":"a1"}`, string(event))

	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"S3_KEY":"a1","batch_id":"b"}`), 0o644))
	event, err = readEvent(path, nil)
	require.NoError(t, err)
	require.Contains(t, string(event), "batch_id")

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = readEvent(path, nil)
	require.Error(t, err)
}
