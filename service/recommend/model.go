package recommend

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Features is the expected feature order of a taste vector.
var Features = []string{"body", "acidity", "bitterness", "sweetness"}

// ErrNoModel is returned when no clustering model is loaded.
var ErrNoModel = errors.New("recommend: no model loaded")

// KMeans is a pre-trained clustering model. Only prediction is supported.
type KMeans struct {
	Features  []string    `json:"features"`
	Centroids [][]float64 `json:"centroids"`
}

// LoadModel reads a model file and checks its shape.
func LoadModel(path string) (*KMeans, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m KMeans
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("recommend: decode %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *KMeans) validate() error {
	if len(m.Features) != len(Features) {
		return fmt.Errorf("recommend: model has %d features, want %d", len(m.Features), len(Features))
	}
	for i, f := range Features {
		if m.Features[i] != f {
			return fmt.Errorf("recommend: feature %d is %q, want %q", i, m.Features[i], f)
		}
	}
	if len(m.Centroids) == 0 {
		return errors.New("recommend: model has no centroids")
	}
	for i, c := range m.Centroids {
		if len(c) != len(Features) {
			return fmt.Errorf("recommend: centroid %d has %d dimensions", i, len(c))
		}
	}
	return nil
}

// Predict returns the index of the centroid nearest to vec by squared
// Euclidean distance. Ties go to the lower index.
func (m *KMeans) Predict(vec []float64) (int, error) {
	if m == nil {
		return 0, ErrNoModel
	}
	if len(vec) != len(Features) {
		return 0, fmt.Errorf("recommend: vector has %d dimensions, want %d", len(vec), len(Features))
	}
	best, bestDist := 0, -1.0
	for i, c := range m.Centroids {
		var d float64
		for j := range c {
			diff := c[j] - vec[j]
			d += diff * diff
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}
