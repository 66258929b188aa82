package filedev

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateOpen(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "flash.img")

	dev, err := Create(path, 8192)
	requireT.NoError(err)
	requireT.EqualValues(8192, dev.Size())

	_, err = dev.Seek(100, io.SeekStart)
	requireT.NoError(err)
	_, err = dev.Write([]byte{0x01, 0x02})
	requireT.NoError(err)
	requireT.NoError(dev.Sync())
	requireT.NoError(dev.Close())

	_, err = Create(path, 8192)
	requireT.Error(err)

	dev, err = Open(path)
	requireT.NoError(err)
	defer dev.Close()
	requireT.EqualValues(8192, dev.Size())

	_, err = dev.Seek(99, io.SeekStart)
	requireT.NoError(err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(dev, buf)
	requireT.NoError(err)
	requireT.Equal([]byte{0xff, 0x01, 0x02, 0xff}, buf)
}
