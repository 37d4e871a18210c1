// Package classifier runs a locally hosted ONNX text classifier that predicts
// a case outcome label for a block of case facts. The model consumes a hashed
// bag-of-words feature vector; labels come from a sidecar labels file.
//
// The classifier is an optional collaborator: any load or inference failure is
// returned as an error and callers fall back to the generation service.
package classifier

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Prediction is one outcome label with its softmax confidence.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float32 `json:"confidence"`
}

type Classifier struct {
	mu sync.Mutex

	modelPath  string
	labelsPath string
	libPath    string

	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	labels     []string
	featureDim int
	inited     bool
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// New creates a classifier that lazily loads the ONNX model and labels on
// first use.
func New(modelPath, labelsPath, onnxLibPath string) *Classifier {
	return &Classifier{
		modelPath:  modelPath,
		labelsPath: labelsPath,
		libPath:    onnxLibPath,
	}
}

func (c *Classifier) initOnce() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inited {
		return nil
	}

	if c.libPath != "" {
		ort.SetSharedLibraryPath(c.libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx init environment: %w", err)
	}

	labels, err := loadLabels(c.labelsPath)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}
	c.labels = labels

	inputs, outputs, err := ort.GetInputOutputInfo(c.modelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}
	inputShape := inputs[0].Dimensions
	outputShape := outputs[0].Dimensions
	c.featureDim = int(inputShape[len(inputShape)-1])
	if c.featureDim <= 0 {
		return fmt.Errorf("onnx model has dynamic feature dimension; a fixed input width is required")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return fmt.Errorf("onnx new input tensor: %w", err)
	}
	c.input = inputTensor

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}
	c.output = outputTensor

	inputNames := make([]string, len(inputs))
	for i := range inputs {
		inputNames[i] = inputs[i].Name
	}
	outputNames := make([]string, len(outputs))
	for i := range outputs {
		outputNames[i] = outputs[i].Name
	}

	session, err := ort.NewAdvancedSession(c.modelPath, inputNames, outputNames,
		[]ort.Value{c.input}, []ort.Value{c.output}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}
	c.session = session
	c.inited = true
	return nil
}

func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// Predict vectorizes the text, runs inference, and returns the top label with
// its softmax confidence.
func (c *Classifier) Predict(text string) (Prediction, error) {
	if err := c.initOnce(); err != nil {
		return Prediction{}, err
	}

	features := Vectorize(text, c.featureDim)

	c.mu.Lock()
	inData := c.input.GetData()
	if len(inData) < len(features) {
		c.mu.Unlock()
		return Prediction{}, fmt.Errorf("input tensor size %d < feature dim %d", len(inData), len(features))
	}
	copy(inData, features)
	err := c.session.Run()
	var logits []float32
	if err == nil {
		logits = append([]float32(nil), c.output.GetData()...)
	}
	c.mu.Unlock()
	if err != nil {
		return Prediction{}, fmt.Errorf("onnx run: %w", err)
	}
	if len(logits) == 0 {
		return Prediction{}, fmt.Errorf("empty model output")
	}

	probs := softmax(logits)
	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}
	label := fmt.Sprintf("Class_%d", best)
	if best < len(c.labels) {
		label = c.labels[best]
	}
	return Prediction{Label: label, Confidence: probs[best]}, nil
}

// Close releases the ONNX session and tensors. Safe to call on a classifier
// that never initialized.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inited {
		return
	}
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.output != nil {
		c.output.Destroy()
		c.output = nil
	}
	if c.input != nil {
		c.input.Destroy()
		c.input = nil
	}
	c.inited = false
}

// Vectorize maps text onto a fixed-width hashed bag-of-words vector,
// L2-normalized. Mirrors the hashing vectorizer the model was trained with.
func Vectorize(text string, dim int) []float32 {
	out := make([]float32, dim)
	if dim <= 0 {
		return out
	}
	for _, token := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		out[int(h.Sum32())%dim]++
	}

	var norm float64
	for _, v := range out {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range out {
			out[i] *= inv
		}
	}
	return out
}

func softmax(logits []float32) []float32 {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}
	var sum float64
	exps := make([]float64, len(logits))
	for i, v := range logits {
		exps[i] = math.Exp(float64(v - maxLogit))
		sum += exps[i]
	}
	out := make([]float32, len(logits))
	for i := range exps {
		out[i] = float32(exps[i] / sum)
	}
	return out
}
