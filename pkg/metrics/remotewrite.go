package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/snappy"
	"google.golang.org/protobuf/encoding/protowire"
)

// Pusher sends one batch of samples to a metrics backend
type Pusher interface {
	Push(ctx context.Context, samples map[string]float64, at time.Time) error
}

// RemoteWriter pushes samples using the Prometheus remote-write protocol
type RemoteWriter struct {
	URL      string
	Username string
	Password string
	// Labels are attached to every series in addition to __name__
	Labels map[string]string
	Client *http.Client
}

// NewRemoteWriter creates a writer for endpoint with basic auth
func NewRemoteWriter(endpoint, username, password string) *RemoteWriter {
	return &RemoteWriter{
		URL:      endpoint,
		Username: username,
		Password: password,
		Labels:   map[string]string{},
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Push encodes samples into a WriteRequest and posts it
func (w *RemoteWriter) Push(ctx context.Context, samples map[string]float64, at time.Time) error {
	if len(samples) == 0 {
		return nil
	}

	body := snappy.Encode(nil, EncodeWriteRequest(samples, w.Labels, at))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build remote write request: %w", err)
	}
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if w.Username != "" || w.Password != "" {
		req.SetBasicAuth(w.Username, w.Password)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("remote write failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote write returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// EncodeWriteRequest builds the uncompressed protobuf WriteRequest body.
// One series per sample, all stamped with at in milliseconds. Series are
// ordered by metric name and labels within a series by label name.
//
//	WriteRequest { repeated TimeSeries timeseries = 1; }
//	TimeSeries   { repeated Label labels = 1; repeated Sample samples = 2; }
//	Label        { string name = 1; string value = 2; }
//	Sample       { double value = 1; int64 timestamp = 2; }
func EncodeWriteRequest(samples map[string]float64, labels map[string]string, at time.Time) []byte {
	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Strings(names)

	ts := at.UnixMilli()
	var req []byte
	for _, name := range names {
		series := appendLabels(nil, name, labels)

		var sample []byte
		sample = protowire.AppendTag(sample, 1, protowire.Fixed64Type)
		sample = protowire.AppendFixed64(sample, math.Float64bits(samples[name]))
		sample = protowire.AppendTag(sample, 2, protowire.VarintType)
		sample = protowire.AppendVarint(sample, uint64(ts))

		series = protowire.AppendTag(series, 2, protowire.BytesType)
		series = protowire.AppendBytes(series, sample)

		req = protowire.AppendTag(req, 1, protowire.BytesType)
		req = protowire.AppendBytes(req, series)
	}
	return req
}

func appendLabels(b []byte, metric string, extra map[string]string) []byte {
	pairs := make([][2]string, 0, len(extra)+1)
	pairs = append(pairs, [2]string{"__name__", metric})
	for k, v := range extra {
		if k == "__name__" {
			continue
		}
		pairs = append(pairs, [2]string{k, v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i][0] < pairs[j][0] })

	for _, p := range pairs {
		var label []byte
		label = protowire.AppendTag(label, 1, protowire.BytesType)
		label = protowire.AppendString(label, p[0])
		label = protowire.AppendTag(label, 2, protowire.BytesType)
		label = protowire.AppendString(label, p[1])

		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, label)
	}
	return b
}

// SanitizeName maps s onto the metric name alphabet [a-zA-Z0-9_:],
// replacing anything else with '_' and prefixing a leading digit
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
