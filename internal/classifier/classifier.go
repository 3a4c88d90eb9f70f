// Package classifier holds the image classification collaborator. The store
// treats its output as opaque.
package classifier

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"math/rand"
	"os"
	"strings"

	"fruitvision/internal/models"
	"fruitvision/internal/providers"
	"fruitvision/internal/structures"
)

type ClassifierInterface interface {
	Predict(image []byte) (*models.ClassificationResult, error)
	Labels() []string
}

// LabelClassifier is a placeholder implementation: it validates that the input
// decodes as an image and picks a uniformly random label from the configured
// label file with a confidence in [0.85, 0.99). It stands in for real model
// inference (the original system shipped the same placeholder) and keeps the
// pipeline exercisable end-to-end.
type LabelClassifier struct {
	labels []string

	// swappable in tests for deterministic output
	intN   func(n int) int
	float  func() float64
}

func NewLabelClassifier(conf *structures.Config, logger providers.Logger) (ClassifierInterface, error) {
	labels, err := loadLabels(conf.Classifier.LabelsPath)
	if err != nil {
		return nil, err
	}
	logger.Infof(providers.TypeApp, "Classifier loaded %d labels from %s", len(labels), conf.Classifier.LabelsPath)
	return &LabelClassifier{
		labels: labels,
		intN:   rand.Intn,
		float:  rand.Float64,
	}, nil
}

func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read labels file: %w", err)
	}
	var labels []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			labels = append(labels, line)
		}
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s contains no labels", path)
	}
	return labels, nil
}

func (lc *LabelClassifier) Predict(img []byte) (*models.ClassificationResult, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(img)); err != nil {
		return nil, fmt.Errorf("input is not a decodable image: %w", err)
	}

	label := lc.labels[lc.intN(len(lc.labels))]
	confidence := math.Round((0.85+lc.float()*0.14)*100) / 100

	return &models.ClassificationResult{
		Label:      label,
		Confidence: confidence,
		Tag:        tagFor(label),
	}, nil
}

func (lc *LabelClassifier) Labels() []string {
	out := make([]string, len(lc.labels))
	copy(out, lc.labels)
	return out
}

// tagFor derives the coarse category from a label, e.g. "Banana A" -> "banana".
func tagFor(label string) string {
	first, _, _ := strings.Cut(label, " ")
	return strings.ToLower(first)
}
