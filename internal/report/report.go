// Package report renders training curves and dumps the per-epoch history.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/born-ml/cifarnet/internal/trainer"
)

// ErrEmptyHistory is returned when there is no completed epoch to report.
var ErrEmptyHistory = errors.New("report: history has no epochs")

// Figure size.
const (
	Width  = 8 * vg.Inch
	Height = 8 * vg.Inch
)

func series(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i].X = float64(i)
		xys[i].Y = v
	}
	return xys
}

func panel(title, ylabel string, lines ...any) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	if err := plotutil.AddLines(p, lines...); err != nil {
		return nil, fmt.Errorf("report: %s: %w", title, err)
	}
	return p, nil
}

// Plot draws two stacked panels, loss above accuracy, as a PNG to w.
func Plot(w io.Writer, h *trainer.History) error {
	if h == nil || h.Epochs() == 0 {
		return ErrEmptyHistory
	}

	loss, err := panel("Cross Entropy Loss", "Loss",
		"Train losses", series(h.TrainLoss),
		"Validation losses", series(h.ValLoss))
	if err != nil {
		return err
	}
	acc, err := panel("Accuracy", "Accuracy",
		"Train accuracy", series(h.TrainAcc),
		"Validation accuracy", series(h.ValAcc))
	if err != nil {
		return err
	}

	img := vgimg.New(Width, Height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2,
		Cols: 1,
		PadX: vg.Millimeter,
		PadY: 4 * vg.Millimeter,
	}
	plots := [][]*plot.Plot{{loss}, {acc}}
	canvases := plot.Align(plots, tiles, dc)
	for row := range plots {
		plots[row][0].Draw(canvases[row][0])
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("report: write png: %w", err)
	}
	return nil
}

// SavePlot writes the figure to path.
func SavePlot(path string, h *trainer.History) error {
	return saveFile(path, func(w io.Writer) error { return Plot(w, h) })
}

// WriteCSV writes one row per epoch: epoch, train_loss, val_loss,
// train_acc, val_acc.
func WriteCSV(w io.Writer, h *trainer.History) error {
	if h == nil {
		return ErrEmptyHistory
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"epoch", "train_loss", "val_loss", "train_acc", "val_acc"}); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i := range h.Epochs() {
		row := []string{
			strconv.Itoa(i),
			f(h.TrainLoss[i]),
			f(h.ValLoss[i]),
			f(h.TrainAcc[i]),
			f(h.ValAcc[i]),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the history table to path.
func SaveCSV(path string, h *trainer.History) error {
	return saveFile(path, func(w io.Writer) error { return WriteCSV(w, h) })
}

func saveFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("report: %w", cerr)
		}
	}()
	return write(f)
}
