package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CIFAR-10 binary layout: each record is one label byte followed by
// 1024 red, 1024 green and 1024 blue bytes, each plane row-major 32x32.
const (
	CIFARImageSize  = 32
	CIFARChannels   = 3
	CIFARClasses    = 10
	cifarPixels     = CIFARChannels * CIFARImageSize * CIFARImageSize
	cifarRecordSize = 1 + cifarPixels

	// CIFARDirName is the directory the binary archive extracts to.
	CIFARDirName = "cifar-10-batches-bin"
)

// CIFARClassNames lists the label names in label order.
var CIFARClassNames = [CIFARClasses]string{
	"airplane", "automobile", "bird", "cat", "deer",
	"dog", "frog", "horse", "ship", "truck",
}

// ErrTruncatedRecord is returned when a batch file ends inside a record.
var ErrTruncatedRecord = errors.New("cifar10: truncated record")

// CIFARTrainFiles returns the training batch file names.
func CIFARTrainFiles() []string {
	return []string{"data_batch_1.bin", "data_batch_2.bin", "data_batch_3.bin", "data_batch_4.bin", "data_batch_5.bin"}
}

// CIFARTestFiles returns the test batch file names.
func CIFARTestFiles() []string {
	return []string{"test_batch.bin"}
}

// NormalizePixel maps a byte to [-1, 1]: x/255, then mean 0.5 and std 0.5.
func NormalizePixel(b byte) float64 {
	return (float64(b)/255.0 - 0.5) / 0.5
}

// ReadCIFARRecords decodes records from r until EOF or until limit records
// have been read (limit <= 0 reads everything). Pixels are normalized.
func ReadCIFARRecords(r io.Reader, limit int) ([]float64, []int32, error) {
	var images []float64
	var labels []int32
	record := make([]byte, cifarRecordSize)

	for limit <= 0 || len(labels) < limit {
		_, err := io.ReadFull(r, record)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, fmt.Errorf("%w after %d records", ErrTruncatedRecord, len(labels))
		}
		if err != nil {
			return nil, nil, fmt.Errorf("cifar10: read record: %w", err)
		}
		if record[0] >= CIFARClasses {
			return nil, nil, fmt.Errorf("cifar10: record %d has label %d", len(labels), record[0])
		}

		labels = append(labels, int32(record[0]))
		for _, b := range record[1:] {
			images = append(images, NormalizePixel(b))
		}
	}
	return images, labels, nil
}

// LoadCIFAR10 reads the training or test split from dir, which must hold
// the files of the binary distribution. maxSamples > 0 caps the sample count.
func LoadCIFAR10(dir string, train bool, maxSamples int) (*Dataset, error) {
	files := CIFARTestFiles()
	if train {
		files = CIFARTrainFiles()
	}

	var images []float64
	var labels []int32
	for _, name := range files {
		remaining := 0
		if maxSamples > 0 {
			remaining = maxSamples - len(labels)
			if remaining <= 0 {
				break
			}
		}

		imgs, lbls, err := readCIFARFile(filepath.Join(dir, name), remaining)
		if err != nil {
			return nil, err
		}
		images = append(images, imgs...)
		labels = append(labels, lbls...)
	}

	return NewDataset(images, labels, CIFARChannels, CIFARImageSize, CIFARImageSize, CIFARClasses)
}

func readCIFARFile(path string, limit int) ([]float64, []int32, error) {
	//nolint:gosec // G304: dataset path is configured by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cifar10: %w", err)
	}
	defer f.Close()

	images, labels, err := ReadCIFARRecords(f, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return images, labels, nil
}
