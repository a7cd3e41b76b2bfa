package slide

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSidecar(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDirectorySource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writeSidecar(t, dir, "s2.json", `{"mpp_x":0.25,"mpp_y":0.5,"coords":[[0,0],[1,0]]}`)
	writeSidecar(t, dir, "s1.json", `{"mpp_x":0.25,"mpp_y":0.25,"coords":[[10,20],[30,40],[50,60]]}`)
	writeSidecar(t, dir, "notes.txt", "not a sidecar")

	source := NewDirectorySource(dir)
	slides, err := source.Slides(ctx)
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, "s1", slides[0].ID())
	assert.Equal(t, "s2", slides[1].ID())

	coords, err := slides[0].Coordinates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Coord{{X: 10, Y: 20}, {X: 30, Y: 40}, {X: 50, Y: 60}}, coords)

	props, err := slides[1].Properties(ctx)
	require.NoError(t, err)
	res, err := ResolutionFromProperties(props)
	require.NoError(t, err)
	assert.Equal(t, 0.25, res.MPPX)
	assert.Equal(t, 0.5, res.MPPY)
}

func TestDirectorySource_MissingResolution(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writeSidecar(t, dir, "bare.json", `{"coords":[[0,0],[1,1]]}`)

	source := NewDirectorySource(dir)
	slides, err := source.Slides(ctx)
	require.NoError(t, err)
	require.Len(t, slides, 1)

	props, err := slides[0].Properties(ctx)
	require.NoError(t, err)

	_, err = ResolutionFromProperties(props)
	var mm *ErrMissingMetadata
	require.ErrorAs(t, err, &mm)
}

func TestDirectorySource_BadSidecar(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	writeSidecar(t, dir, "broken.json", `{`)

	source := NewDirectorySource(dir)
	slides, err := source.Slides(ctx)
	require.NoError(t, err)
	require.Len(t, slides, 1)

	_, err = slides[0].Coordinates(ctx)
	require.Error(t, err)
}
