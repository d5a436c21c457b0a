// Package export serializes trajectories to streams (CSV or JSON). Writing
// to files, if any, is left to the caller.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/connor-mcnaboe/state-propogator/internal/dynamo"
	"github.com/connor-mcnaboe/state-propogator/internal/sim"
	"github.com/connor-mcnaboe/state-propogator/internal/trajectory"
)

var csvHeader = []string{"t", "x", "y", "z", "vx", "vy", "vz"}

type Meta struct {
	Scenario string  `json:"scenario"`
	Mu       float64 `json:"mu"`
	TStart   float64 `json:"t_start"`
	TEnd     float64 `json:"t_end"`
	RTol     float64 `json:"rtol"`
	ATol     float64 `json:"atol"`
}

type Stats struct {
	Accepted    int     `json:"accepted"`
	Rejected    int     `json:"rejected"`
	Evaluations int     `json:"evaluations"`
	LastStep    float64 `json:"last_step"`
}

type Row struct {
	T     float64    `json:"t"`
	State [6]float64 `json:"state"`
}

type Document struct {
	Meta    Meta               `json:"meta"`
	Stats   Stats              `json:"stats"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Error   string             `json:"error,omitempty"`
	Samples []Row              `json:"samples"`
}

// NewDocument flattens a propagation result. runErr may be nil.
func NewDocument(meta Meta, res *sim.Result, runErr error) Document {
	doc := Document{
		Meta: meta,
		Stats: Stats{
			Accepted:    res.Stats.Accepted,
			Rejected:    res.Stats.Rejected,
			Evaluations: res.Stats.Evaluations,
			LastStep:    res.Stats.LastStep,
		},
		Metrics: res.Metrics,
		Samples: make([]Row, len(res.Trajectory.Samples)),
	}
	if runErr != nil {
		doc.Error = runErr.Error()
	}
	for i, s := range res.Trajectory.Samples {
		doc.Samples[i] = Row{T: s.T, State: s.State}
	}
	return doc
}

func WriteJSON(w io.Writer, doc Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// WriteJSONBatch writes several documents as one JSON array.
func WriteJSONBatch(w io.Writer, docs []Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(docs)
}

func WriteCSV(w io.Writer, traj trajectory.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	row := make([]string, len(csvHeader))
	for _, s := range traj.Samples {
		row[0] = strconv.FormatFloat(s.T, 'g', -1, 64)
		for i, v := range s.State {
			row[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses the output of WriteCSV.
func ReadCSV(r io.Reader) (trajectory.Trajectory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	records, err := cr.ReadAll()
	if err != nil {
		return trajectory.Trajectory{}, err
	}
	if len(records) == 0 {
		return trajectory.Trajectory{}, fmt.Errorf("export: empty csv")
	}

	rec := trajectory.NewRecorder(trajectory.WithCapacity(len(records) - 1))
	for line, record := range records[1:] {
		var s dynamo.Sample
		vals := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return trajectory.Trajectory{}, fmt.Errorf("export: line %d column %d: %w", line+2, i+1, err)
			}
			vals[i] = v
		}
		s.T = vals[0]
		copy(s.State[:], vals[1:])
		if err := rec.Append(s); err != nil {
			return trajectory.Trajectory{}, fmt.Errorf("export: line %d: %w", line+2, err)
		}
	}
	return rec.Trajectory(), nil
}
