// ABOUTME: Batch export of the event journal to a GCS bucket as JSON lines
// ABOUTME: Supports ADC authentication and emulator mode for tests

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/percept-io/percept/internal/journal"
)

// Config holds GCS export configuration.
type Config struct {
	// Bucket is the GCS bucket name. Required.
	Bucket string

	// ObjectPrefix is prepended to exported object names.
	// Example: "percept/" yields objects like "percept/20260831T120000Z.jsonl".
	ObjectPrefix string

	// CredentialsFile is the path to service account JSON (optional).
	// If empty, uses Application Default Credentials (ADC).
	CredentialsFile string

	// EmulatorHost is the GCS emulator host (e.g., "localhost:4443").
	// When set, the exporter uploads over plain HTTP instead of the Go
	// SDK, which lets tests run against a local fake.
	EmulatorHost string
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// Result describes one completed export.
type Result struct {
	// Object is the name of the created object.
	Object string

	// Records is the number of journal records written.
	Records int

	// Bytes written.
	Bytes int
}

// Exporter uploads journal snapshots to GCS.
type Exporter struct {
	storageClient *storage.Client
	httpClient    *http.Client
	config        Config
	journal       *journal.Journal
	logger        *slog.Logger
	emulatorHost  string
}

// New creates an exporter. When STORAGE_EMULATOR_HOST is set or
// EmulatorHost is configured, uploads go over plain HTTP.
func New(ctx context.Context, cfg Config, j *journal.Journal, logger *slog.Logger) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	emulatorHost := cfg.EmulatorHost
	if emulatorHost == "" {
		emulatorHost = os.Getenv("STORAGE_EMULATOR_HOST")
	}
	if emulatorHost != "" {
		return &Exporter{
			httpClient:   &http.Client{},
			config:       cfg,
			journal:      j,
			logger:       logger,
			emulatorHost: emulatorHost,
		}, nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	return &Exporter{
		storageClient: client,
		config:        cfg,
		journal:       j,
		logger:        logger,
	}, nil
}

// Close releases the storage client.
func (e *Exporter) Close() error {
	if e.storageClient != nil {
		return e.storageClient.Close()
	}
	return nil
}

// Export writes every journal record as one JSON line to a timestamped
// object and returns what was written.
func (e *Exporter) Export(ctx context.Context) (*Result, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	count := 0
	err := e.journal.All(ctx, func(rec journal.Record) error {
		count++
		return enc.Encode(rec)
	})
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}

	object := e.config.ObjectPrefix + time.Now().UTC().Format("20060102T150405Z") + ".jsonl"
	if err := e.upload(ctx, object, buf.Bytes()); err != nil {
		return nil, err
	}

	e.logger.Info("journal exported",
		slog.String("bucket", e.config.Bucket),
		slog.String("object", object),
		slog.Int("records", count),
	)

	return &Result{Object: object, Records: count, Bytes: buf.Len()}, nil
}

func (e *Exporter) upload(ctx context.Context, object string, data []byte) error {
	if e.emulatorHost != "" {
		return e.uploadEmulator(ctx, object, data)
	}

	w := e.storageClient.Bucket(e.config.Bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("writing object %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing object %s: %w", object, err)
	}
	return nil
}

// uploadEmulator uses the JSON API media upload endpoint directly.
func (e *Exporter) uploadEmulator(ctx context.Context, object string, data []byte) error {
	uploadURL := fmt.Sprintf("http://%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		e.emulatorHost, e.config.Bucket, url.QueryEscape(object))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("uploading object %s: %w", object, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("uploading object %s: status %d: %s", object, resp.StatusCode, body)
	}
	return nil
}
