package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/san-kum/qshpost/internal/axis"
	"github.com/san-kum/qshpost/internal/equil"
	"github.com/san-kum/qshpost/internal/field"
	"github.com/san-kum/qshpost/internal/fourier"
	"github.com/san-kum/qshpost/internal/tracing"
)

type CurveRecord struct {
	XM []int     `json:"xm"`
	RC []float64 `json:"rc"`
	RS []float64 `json:"rs"`
	ZC []float64 `json:"zc"`
	ZS []float64 `json:"zs"`
}

type AxisRecord struct {
	InitPoint [3]float64 `json:"initPoint"`
	XN        []int      `json:"xn"`
	RAC       []float64  `json:"rac"`
	ZAS       []float64  `json:"zas"`
}

type LineRecord struct {
	NZeta int       `json:"nzeta"`
	NFP   int       `json:"nfp"`
	S     []float64 `json:"s"`
	Theta []float64 `json:"theta"`
	Zeta  []float64 `json:"zeta"`
	R     []float64 `json:"r"`
	Z     []float64 `json:"z"`
}

func CurveToRecord(c *fourier.Curve) CurveRecord {
	return CurveRecord{XM: c.XM(), RC: c.RC(), RS: c.RS(), ZC: c.ZC(), ZS: c.ZS()}
}

func (r CurveRecord) Curve() (*fourier.Curve, error) {
	return fourier.NewCurve(r.XM, r.RC, r.RS, r.ZC, r.ZS)
}

func AxisToRecord(a *axis.Axis) AxisRecord {
	p := a.Start()
	return AxisRecord{InitPoint: [3]float64{p.S, p.Theta, p.Zeta}, XN: a.XN(), RAC: a.RAC(), ZAS: a.ZAS()}
}

func (r AxisRecord) Axis() (*axis.Axis, error) {
	p := equil.Point3{S: r.InitPoint[0], Theta: r.InitPoint[1], Zeta: r.InitPoint[2]}
	return axis.New(p, r.XN, r.RAC, r.ZAS)
}

func LineToRecord(l *tracing.FieldLine) LineRecord {
	return LineRecord{
		NZeta: l.NZeta(), NFP: l.NFP(),
		S: l.S(), Theta: l.Theta(), Zeta: l.Zeta(), R: l.R(), Z: l.Z(),
	}
}

func (r LineRecord) Line() (*tracing.FieldLine, error) {
	n := len(r.S)
	if len(r.Theta) != n || len(r.Zeta) != n || len(r.R) != n || len(r.Z) != n {
		return nil, equil.Preconditionf("line record lengths differ")
	}
	samples := make([]tracing.Sample, n)
	for i := range samples {
		samples[i] = tracing.Sample{
			Point3: equil.Point3{S: r.S[i], Theta: r.Theta[i], Zeta: r.Zeta[i]},
			R:      r.R[i],
			Z:      r.Z[i],
		}
	}
	return tracing.NewFieldLine(samples, r.NZeta, r.NFP)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeCompressed(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		f.Close()
		return err
	}
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readCompressed(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer zr.Close()
	if err := json.NewDecoder(io.Reader(zr)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func WriteCurve(path string, c *fourier.Curve) error {
	return writeJSON(path, CurveToRecord(c))
}

func ReadCurve(path string) (*fourier.Curve, error) {
	var rec CurveRecord
	if err := readJSON(path, &rec); err != nil {
		return nil, err
	}
	return rec.Curve()
}

func WriteAxis(path string, a *axis.Axis) error {
	return writeJSON(path, AxisToRecord(a))
}

func ReadAxis(path string) (*axis.Axis, error) {
	var rec AxisRecord
	if err := readJSON(path, &rec); err != nil {
		return nil, err
	}
	return rec.Axis()
}

// WriteGrid stores a grid as zstd compressed JSON.
func WriteGrid(path string, g *field.Grid) error {
	return writeCompressed(path, g.Data())
}

func ReadGrid(path string) (*field.Grid, error) {
	var d field.GridData
	if err := readCompressed(path, &d); err != nil {
		return nil, err
	}
	return field.NewGrid(d)
}

// WriteLines stores traced lines as zstd compressed JSON.
func WriteLines(path string, lines []*tracing.FieldLine) error {
	recs := make([]LineRecord, len(lines))
	for i, l := range lines {
		recs[i] = LineToRecord(l)
	}
	return writeCompressed(path, recs)
}

func ReadLines(path string) ([]*tracing.FieldLine, error) {
	var recs []LineRecord
	if err := readCompressed(path, &recs); err != nil {
		return nil, err
	}
	lines := make([]*tracing.FieldLine, len(recs))
	for i, rec := range recs {
		l, err := rec.Line()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		lines[i] = l
	}
	return lines, nil
}
