package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"karli/internal/config"
	"karli/internal/decision"
	"karli/internal/logger"
)

const modelSuffix = "_best_model.onnx"

var ortInitOnce sync.Once

func initORT(libraryPath string) error {
	var err error
	ortInitOnce.Do(func() {
		if libraryPath == "" {
			switch runtime.GOOS {
			case "windows":
				libraryPath = "onnxruntime.dll"
			case "darwin":
				libraryPath = "libonnxruntime.dylib"
			default:
				libraryPath = "/usr/lib/libonnxruntime.so"
			}
		}
		ort.SetSharedLibraryPath(libraryPath)
		err = ort.InitializeEnvironment()
	})
	return err
}

// tickerSession owns the fixed-shape tensors for one ticker's model.
type tickerSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *tickerSession) close() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// ONNXPolicy runs one exported model per ticker, each with a
// (1, width) observation input and a (1, 3) action head. Sessions are loaded
// once at startup from the model directory.
type ONNXPolicy struct {
	mu       sync.Mutex
	width    int
	sessions map[string]*tickerSession
}

// NewONNXPolicy scans cfg.ModelDir for <TICKER>_best_model.onnx files and
// opens a session per ticker. Tickers without a model file are simply not
// covered; the pipeline checks HasModel before batching.
func NewONNXPolicy(cfg config.PolicyConfig) (*ONNXPolicy, error) {
	if cfg.InputWidth <= 0 {
		return nil, fmt.Errorf("policy input width must be positive, got %d", cfg.InputWidth)
	}
	if err := initORT(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initializing onnxruntime: %w", err)
	}
	entries, err := os.ReadDir(cfg.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("reading model dir %s: %w", cfg.ModelDir, err)
	}

	p := &ONNXPolicy{width: cfg.InputWidth, sessions: make(map[string]*tickerSession)}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, modelSuffix) {
			continue
		}
		ticker := strings.ToUpper(strings.TrimSuffix(name, modelSuffix))
		sess, err := newTickerSession(filepath.Join(cfg.ModelDir, name), cfg.InputWidth)
		if err != nil {
			logger.Errorf("could not load model for %s: %v", ticker, err)
			continue
		}
		p.sessions[ticker] = sess
		logger.Infof("loaded model for %s", ticker)
	}
	if len(p.sessions) == 0 {
		p.Close()
		return nil, fmt.Errorf("no usable models in %s", cfg.ModelDir)
	}
	return p, nil
}

func newTickerSession(path string, width int) (*tickerSession, error) {
	inputShape := ort.NewShape(1, int64(width))
	input, err := ort.NewTensor(inputShape, make([]float32, width))
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	outputShape := ort.NewShape(1, int64(len(decision.ActionIndexOrder)))
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("creating output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(path,
		[]string{"input"}, []string{"output"},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &tickerSession{session: session, input: input, output: output}, nil
}

func (p *ONNXPolicy) InputWidth() int { return p.width }

func (p *ONNXPolicy) HasModel(ticker string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.sessions[ticker]
	return ok
}

// Infer runs each ticker's model in batch order. Any failure fails the whole
// call; partial results are never returned.
func (p *ONNXPolicy) Infer(ctx context.Context, batch []Input) ([]decision.TickerAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]decision.TickerAction, 0, len(batch))
	for _, in := range batch {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPolicyUnavailable, err)
		}
		sess, ok := p.sessions[in.Ticker]
		if !ok {
			return nil, fmt.Errorf("%w: no model for %s", ErrPolicyUnavailable, in.Ticker)
		}
		if len(in.Vector) != p.width {
			return nil, fmt.Errorf("%w: %s observation width %d, expected %d",
				ErrPolicyUnavailable, in.Ticker, len(in.Vector), p.width)
		}
		copy(sess.input.GetData(), in.Vector)
		if err := sess.session.Run(); err != nil {
			return nil, fmt.Errorf("%w: inference failed for %s: %v", ErrPolicyUnavailable, in.Ticker, err)
		}
		action, err := decision.ActionFromIndex(argmax(sess.output.GetData()))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPolicyUnavailable, err)
		}
		out = append(out, decision.TickerAction{Ticker: in.Ticker, Action: action})
	}
	return out, nil
}

// Close releases every session and its tensors.
func (p *ONNXPolicy) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sess := range p.sessions {
		sess.close()
	}
	p.sessions = map[string]*tickerSession{}
}

func argmax(values []float32) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
