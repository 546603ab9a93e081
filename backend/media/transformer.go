package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ravigill3969/image-converter/backend/models"
)

type TransformRequest struct {
	Kind      models.TransformKind
	SourceKey string
	// DestKey is where the service should write the result.
	DestKey string
	Format  models.OutputFormat
	// Flatten asks for transparency to be composited onto white, for
	// formats without an alpha channel.
	Flatten bool
	Quality *int
	Edit    *models.EditOptions
}

type TransformResult struct {
	URL string
	Key string
}

type Transformer interface {
	Transform(ctx context.Context, req TransformRequest) (*TransformResult, error)
}

// HTTPTransformer calls the transformation endpoint (a Lambda style
// function behind HTTP). It reads the source object from the bucket and
// writes the result to DestKey itself.
type HTTPTransformer struct {
	endpoint string
	bucket   string
	client   *http.Client
}

func NewHTTPTransformer(endpoint, bucket string, client *http.Client) *HTTPTransformer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransformer{endpoint: endpoint, bucket: bucket, client: client}
}

func (t *HTTPTransformer) Transform(ctx context.Context, req TransformRequest) (*TransformResult, error) {
	params := url.Values{}
	params.Add("action", string(req.Kind))
	params.Add("bucket", t.bucket)
	params.Add("key", req.SourceKey)
	params.Add("dest", req.DestKey)
	params.Add("format", string(req.Format))
	params.Add("flatten", strconv.FormatBool(req.Flatten))
	if req.Quality != nil {
		params.Add("quality", strconv.Itoa(*req.Quality))
	}
	if e := req.Edit; e != nil {
		params.Add("width", strconv.Itoa(e.Width))
		params.Add("height", strconv.Itoa(e.Height))
		params.Add("rotate", strconv.Itoa(e.Rotate))
		params.Add("grayscale", strconv.FormatBool(e.Grayscale))
		params.Add("flip", strconv.FormatBool(e.Flip))
		params.Add("mirror", strconv.FormatBool(e.Mirror))
	}

	fullURL := fmt.Sprintf("%s?%s", t.endpoint, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("bad response status: %s", resp.Status)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		Message string `json:"message"`
		URL     string `json:"image_url"`
		Key     string `json:"key"`
	}
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("decode transform response: %w", err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("transform response has no image_url")
	}
	if result.Key == "" {
		result.Key = req.DestKey
	}
	return &TransformResult{URL: result.URL, Key: result.Key}, nil
}
