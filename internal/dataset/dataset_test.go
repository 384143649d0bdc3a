package dataset

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecords builds n CIFAR records; record i has label i%10 and every
// pixel equal to byte(i).
func fakeRecords(n int) []byte {
	var buf bytes.Buffer
	for i := range n {
		buf.WriteByte(byte(i % CIFARClasses))
		buf.Write(bytes.Repeat([]byte{byte(i)}, cifarPixels))
	}
	return buf.Bytes()
}

func writeFakeCIFAR(t *testing.T, dir string, perFile int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range append(CIFARTrainFiles(), CIFARTestFiles()...) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), fakeRecords(perFile), 0o600))
	}
}

func TestNormalizePixel(t *testing.T) {
	assert.Equal(t, -1.0, NormalizePixel(0))
	assert.Equal(t, 1.0, NormalizePixel(255))
	assert.InDelta(t, 0.0, NormalizePixel(127), 0.01)
}

func TestReadCIFARRecords(t *testing.T) {
	images, labels, err := ReadCIFARRecords(bytes.NewReader(fakeRecords(3)), 0)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 2}, labels)
	require.Len(t, images, 3*cifarPixels)
	assert.Equal(t, NormalizePixel(2), images[2*cifarPixels])

	_, labels, err = ReadCIFARRecords(bytes.NewReader(fakeRecords(3)), 2)
	require.NoError(t, err)
	assert.Len(t, labels, 2)
}

func TestReadCIFARRecords_Truncated(t *testing.T) {
	data := fakeRecords(2)
	_, _, err := ReadCIFARRecords(bytes.NewReader(data[:len(data)-10]), 0)
	assert.ErrorIs(t, err, ErrTruncatedRecord)
}

func TestReadCIFARRecords_BadLabel(t *testing.T) {
	data := fakeRecords(1)
	data[0] = 12
	_, _, err := ReadCIFARRecords(bytes.NewReader(data), 0)
	assert.Error(t, err)
}

func TestLoadCIFAR10(t *testing.T) {
	dir := t.TempDir()
	writeFakeCIFAR(t, dir, 4)

	train, err := LoadCIFAR10(dir, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, train.Len())
	assert.Equal(t, 3*32*32, train.SampleSize())

	test, err := LoadCIFAR10(dir, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, test.Len())

	capped, err := LoadCIFAR10(dir, true, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, capped.Len())
	_, label := capped.Sample(5)
	assert.Equal(t, int32(1), label) // second file, record 1
}

func TestLoadCIFAR10_MissingFiles(t *testing.T) {
	_, err := LoadCIFAR10(t.TempDir(), true, 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func tarGz(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o600, Size: int64(len(files[name])), Typeflag: tar.TypeReg}))
		_, err := tw.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func fakeArchive(t *testing.T) []byte {
	files := map[string][]byte{CIFARDirName + "/readme.html": []byte("<html/>")}
	for _, name := range append(CIFARTrainFiles(), CIFARTestFiles()...) {
		files[CIFARDirName+"/"+name] = fakeRecords(2)
	}
	return tarGz(t, files)
}

func TestExtractArchive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, ExtractArchive(bytes.NewReader(fakeArchive(t)), root))

	assert.True(t, hasCIFARFiles(filepath.Join(root, CIFARDirName)))
	_, err := os.Stat(filepath.Join(root, CIFARDirName, "readme.html"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractArchive_RejectsTraversal(t *testing.T) {
	archive := tarGz(t, map[string][]byte{"../evil.bin": []byte("x")})
	assert.Error(t, ExtractArchive(bytes.NewReader(archive), t.TempDir()))
}

func TestEnsureCIFAR10_Download(t *testing.T) {
	archive := fakeArchive(t)
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	root := t.TempDir()
	dir, err := EnsureCIFAR10(context.Background(), root, srv.URL, true, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, CIFARDirName), dir)

	// Present files are not fetched again.
	_, err = EnsureCIFAR10(context.Background(), root, srv.URL, true, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestEnsureCIFAR10_NoDownload(t *testing.T) {
	_, err := EnsureCIFAR10(context.Background(), t.TempDir(), "", false, nil)
	assert.Error(t, err)
}

func TestLoader_BatchesCoverDataset(t *testing.T) {
	data, err := Synthetic(10, 1, 2, 3, 0.1, 1)
	require.NoError(t, err)
	loader, err := NewLoader(data, LoaderOptions{BatchSize: 4})
	require.NoError(t, err)

	assert.Equal(t, 10, loader.Len())
	assert.Equal(t, 3, loader.NumBatches())

	var sizes []int
	var labels []int32
	for batch, err := range loader.Batches() {
		require.NoError(t, err)
		sizes = append(sizes, batch.Size())
		assert.Equal(t, batch.Size(), batch.Images.Shape()[0])
		labels = append(labels, batch.Labels...)
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
	assert.Equal(t, []int32{0, 1, 2, 0, 1, 2, 0, 1, 2, 0}, labels)
}

func TestLoader_ShuffleIsSeededPermutation(t *testing.T) {
	data, err := Synthetic(50, 1, 2, 5, 0.1, 1)
	require.NoError(t, err)

	collect := func(l *Loader) []float64 {
		var firsts []float64
		for batch := range l.Batches() {
			size := batch.Images.NumElements() / batch.Size()
			for i := range batch.Size() {
				firsts = append(firsts, batch.Images.Data()[i*size])
			}
		}
		return firsts
	}

	a, _ := NewLoader(data, LoaderOptions{BatchSize: 8, Shuffle: true, Seed: 7})
	b, _ := NewLoader(data, LoaderOptions{BatchSize: 8, Shuffle: true, Seed: 7})
	passA := collect(a)
	assert.Equal(t, passA, collect(b))
	assert.NotEqual(t, passA, collect(a), "each pass reshuffles")

	plain, _ := NewLoader(data, LoaderOptions{BatchSize: 8})
	ordered := collect(plain)
	sort.Float64s(ordered)
	sort.Float64s(passA)
	assert.Equal(t, ordered, passA)
}

func TestNewLoader_InvalidBatchSize(t *testing.T) {
	data, _ := Synthetic(1, 1, 1, 1, 0, 1)
	_, err := NewLoader(data, LoaderOptions{})
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestDataset_HeadAndCounts(t *testing.T) {
	data, err := Synthetic(12, 3, 4, 4, 0.5, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3, 3}, data.ClassCounts())
	assert.Equal(t, 5, data.Head(5).Len())
	assert.Equal(t, 12, data.Head(0).Len())

	_, err = NewDataset(make([]float64, 4), []int32{0, 7}, 1, 1, 2, 3)
	assert.Error(t, err)
}

func TestDataset_Split(t *testing.T) {
	data, err := Synthetic(10, 1, 2, 2, 0, 5)
	require.NoError(t, err)

	train, val := data.Split(7)
	assert.Equal(t, 7, train.Len())
	assert.Equal(t, 3, val.Len())

	want, wantLabel := data.Sample(7)
	got, gotLabel := val.Sample(0)
	assert.Equal(t, want, got)
	assert.Equal(t, wantLabel, gotLabel)

	all, none := data.Split(99)
	assert.Equal(t, 10, all.Len())
	assert.Equal(t, 0, none.Len())
}
