package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/chaos-io/rembg/rembg"
	"github.com/chaos-io/rembg/util"
	nhttp "github.com/chaos-io/rembg/util/http"
)

const (
	DefaultModel      = "u2net"
	DefaultInputName  = "input.1"
	datatypeFP32      = "FP32"
	defaultRemoteWait = 60 * time.Second
)

// Remote 通过 KServe / Triton v2 REST 协议调用远程推理服务
type Remote struct {
	baseURL    string
	model      string
	inputName  string
	outputName string
	timeout    time.Duration
	cli        nhttp.IClient
}

type RemoteOption func(*Remote)

func WithInputName(name string) RemoteOption {
	return func(r *Remote) { r.inputName = name }
}

// WithOutputName 指定取哪个输出，默认取第一个
func WithOutputName(name string) RemoteOption {
	return func(r *Remote) { r.outputName = name }
}

func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) { r.timeout = d }
}

func WithClient(cli nhttp.IClient) RemoteOption {
	return func(r *Remote) { r.cli = cli }
}

func NewRemote(baseURL, model string, opts ...RemoteOption) *Remote {
	if model == "" {
		model = DefaultModel
	}
	r := &Remote{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		inputName: DefaultInputName,
		timeout:   defaultRemoteWait,
		cli:       nhttp.NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type inferTensor struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape"`
	Datatype string    `json:"datatype"`
	Data     []float32 `json:"data"`
}

type inferRequest struct {
	ID     string        `json:"id,omitempty"`
	Inputs []inferTensor `json:"inputs"`
}

type inferResponse struct {
	ModelName string        `json:"model_name"`
	ID        string        `json:"id"`
	Outputs   []inferTensor `json:"outputs"`
}

/*
	curl -X POST "$BASE_URL/v2/models/u2net/infer" \
	  -H "Content-Type: application/json" \
	  -d '{"id": "...", "inputs": [{"name": "input.1", "shape": [1,3,320,320], "datatype": "FP32", "data": [...]}]}'

{"model_name": "u2net", "id": "...", "outputs": [{"name": "1959", "shape": [1,1,320,320], "datatype": "FP32", "data": [...]}]}
*/
func (r *Remote) Infer(ctx context.Context, input *rembg.Tensor) (*rembg.Tensor, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: nil input tensor", rembg.ErrInvalidInput)
	}

	req := &inferRequest{
		ID: ksuid.New().String(),
		Inputs: []inferTensor{{
			Name:     r.inputName,
			Shape:    input.Shape,
			Datatype: datatypeFP32,
			Data:     input.Data,
		}},
	}
	resp := &inferResponse{}

	reqParam := &nhttp.RequestParam{
		RequestURI: r.modelURL("infer"),
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": "application/json"},
		Body:       req,
		Response:   resp,
		Timeout:    r.timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, r.wrapErr(err)
	}

	util.Logger.Debug("got the inference response",
		zap.String("model", resp.ModelName),
		zap.String("id", resp.ID),
		zap.Int("outputs", len(resp.Outputs)))

	out, err := r.pickOutput(resp)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ready 模型是否已加载并可以推理
func (r *Remote) Ready(ctx context.Context) error {
	reqParam := &nhttp.RequestParam{
		RequestURI: r.modelURL("ready"),
		Method:     http.MethodGet,
		Timeout:    5 * time.Second,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return r.wrapErr(err)
	}
	return nil
}

func (r *Remote) modelURL(action string) string {
	return fmt.Sprintf("%s/v2/models/%s/%s", r.baseURL, r.model, action)
}

func (r *Remote) pickOutput(resp *inferResponse) (*rembg.Tensor, error) {
	if len(resp.Outputs) == 0 {
		return nil, fmt.Errorf("%w: model %s returned no outputs", rembg.ErrInference, r.model)
	}

	out := resp.Outputs[0]
	if r.outputName != "" {
		found := false
		for _, o := range resp.Outputs {
			if o.Name == r.outputName {
				out, found = o, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: output %q not found", rembg.ErrInference, r.outputName)
		}
	}

	if out.Datatype != "" && out.Datatype != datatypeFP32 {
		return nil, fmt.Errorf("%w: unsupported output datatype %s", rembg.ErrInference, out.Datatype)
	}

	t := &rembg.Tensor{Shape: out.Shape, Data: out.Data}
	if t.Len() != len(t.Data) {
		return nil, fmt.Errorf("%w: output shape %v doesn't match %d values", rembg.ErrShape, out.Shape, len(out.Data))
	}
	return t, nil
}

func (r *Remote) wrapErr(err error) error {
	var se *nhttp.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %w", rembg.ErrModelNotFound, r.model, err)
	}
	return fmt.Errorf("%w: %w", rembg.ErrInference, err)
}
