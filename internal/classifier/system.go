package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"relabel/internal/services"
)

// TestResults holds the aggregated metrics from the most recent evaluation.
// Populated once per Test call and read by the pipeline driver afterward.
type TestResults struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// Params is the serializable parameter snapshot used for checkpoints.
type Params struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// System wraps a logistic-regression sentiment model over precomputed review
// embeddings. Parameters are owned by the trainer during fit.
type System struct {
	weights *mat.VecDense
	bias    float64
	dim     int

	TestResults TestResults
}

// NewSystem builds a freshly-initialized system for the given embedding width.
// Initialization is deterministic (zeros); all stochasticity lives in the
// trainer's seeded shuffle.
func NewSystem(dim int) *System {
	return &System{
		weights: mat.NewVecDense(dim, nil),
		dim:     dim,
	}
}

// Dim returns the embedding width the system was built for.
func (s *System) Dim() int { return s.dim }

// Params returns a copy of the current parameters.
func (s *System) Params() Params {
	return Params{
		Weights: append([]float64(nil), s.weights.RawVector().Data...),
		Bias:    s.bias,
	}
}

// SetParams restores parameters from a checkpoint snapshot.
func (s *System) SetParams(p Params) error {
	if len(p.Weights) != s.dim {
		return services.Wrap(services.ErrDataShape, "classifier", "restore",
			fmt.Sprintf("checkpoint has %d weights, system expects %d", len(p.Weights), s.dim), nil)
	}
	s.weights = mat.NewVecDense(s.dim, append([]float64(nil), p.Weights...))
	s.bias = p.Bias
	return nil
}

// Forward returns P(label=1) for each row of the embedding matrix.
func (s *System) Forward(embeddings *mat.Dense) []float64 {
	n, _ := embeddings.Dims()
	var logits mat.VecDense
	logits.MulVec(embeddings, s.weights)

	probs := make([]float64, n)
	for i := 0; i < n; i++ {
		probs[i] = sigmoid(logits.AtVec(i) + s.bias)
	}
	return probs
}

// LossAndGrad computes mean binary cross-entropy over the batch along with
// parameter gradients.
func (s *System) LossAndGrad(embeddings *mat.Dense, labels []int) (float64, *mat.VecDense, float64, error) {
	n, _ := embeddings.Dims()
	if n != len(labels) {
		return 0, nil, 0, services.Wrap(services.ErrDataShape, "classifier", "loss",
			fmt.Sprintf("%d embedding rows but %d labels", n, len(labels)), nil)
	}

	probs := s.Forward(embeddings)
	loss := Loss(probs, labels)

	diff := mat.NewVecDense(n, nil)
	gradBias := 0.0
	for i := 0; i < n; i++ {
		d := probs[i] - float64(labels[i])
		diff.SetVec(i, d)
		gradBias += d
	}

	gradWeights := mat.NewVecDense(s.dim, nil)
	gradWeights.MulVec(embeddings.T(), diff)
	gradWeights.ScaleVec(1/float64(n), gradWeights)
	gradBias /= float64(n)

	return loss, gradWeights, gradBias, nil
}

// ApplyGradients performs one gradient-descent update in place.
func (s *System) ApplyGradients(gradWeights *mat.VecDense, gradBias, learningRate float64) {
	s.weights.AddScaledVec(s.weights, -learningRate, gradWeights)
	s.bias -= learningRate * gradBias
}

// Evaluate computes loss and accuracy over a full split without updating
// parameters.
func (s *System) Evaluate(embeddings *mat.Dense, labels []int) (TestResults, error) {
	n, _ := embeddings.Dims()
	if n != len(labels) {
		return TestResults{}, services.Wrap(services.ErrDataShape, "classifier", "evaluate",
			fmt.Sprintf("%d embedding rows but %d labels", n, len(labels)), nil)
	}

	probs := s.Forward(embeddings)
	correct := 0
	for i, p := range probs {
		predicted := 0
		if p >= 0.5 {
			predicted = 1
		}
		if predicted == labels[i] {
			correct++
		}
	}
	return TestResults{
		Loss:     Loss(probs, labels),
		Accuracy: float64(correct) / float64(n),
	}, nil
}

// Loss is the mean binary cross-entropy of probabilities against labels.
func Loss(probs []float64, labels []int) float64 {
	if len(probs) == 0 {
		return 0
	}
	const eps = 1e-12
	total := 0.0
	for i, p := range probs {
		p = math.Min(math.Max(p, eps), 1-eps)
		if labels[i] == 1 {
			total -= math.Log(p)
		} else {
			total -= math.Log(1 - p)
		}
	}
	return total / float64(len(probs))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
