package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpFilesOrdered(t *testing.T) {
	files, err := upFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	require.Equal(t, "0001_init.up.sql", files[0])
	for _, f := range files {
		require.NotContains(t, f, ".down.")
	}
}
