package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hanko-field/storefront/internal/domain"
)

//go:embed products.yaml
var bundled []byte

const gcsScheme = "gs://"

// ObjectOpener reads an object from Cloud Storage.
type ObjectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

type document struct {
	Products []productDocument `yaml:"products"`
}

type productDocument struct {
	ID          int    `yaml:"id"`
	Name        string `yaml:"name"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
}

// LoaderOption customises Load.
type LoaderOption func(*loader)

type loader struct {
	logger *zap.Logger
	opener ObjectOpener
}

// WithLogger sets the logger used to report where the catalog came from.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObjectOpener overrides how gs:// sources are read.
func WithObjectOpener(opener ObjectOpener) LoaderOption {
	return func(l *loader) {
		if opener != nil {
			l.opener = opener
		}
	}
}

// Default returns the bundled catalog.
func Default() (*Catalog, error) {
	return Parse(bundled)
}

// Load reads the catalog from source: empty for the bundled list, gs://bucket/object for Cloud Storage,
// anything else is treated as a local file path.
func Load(ctx context.Context, source string, opts ...LoaderOption) (*Catalog, error) {
	l := loader{logger: zap.NewNop(), opener: openGCSObject}
	for _, opt := range opts {
		opt(&l)
	}

	source = strings.TrimSpace(source)
	var (
		data []byte
		err  error
	)
	switch {
	case source == "":
		data = bundled
		source = "bundled"
	case strings.HasPrefix(source, gcsScheme):
		data, err = l.readGCS(ctx, source)
	default:
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", source, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	l.logger.Info("catalog loaded", zap.String("source", source), zap.Int("products", c.Len()))
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}

	products := make([]domain.Product, 0, len(doc.Products))
	for _, p := range doc.Products {
		price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
		if err != nil {
			return nil, fmt.Errorf("%w: product %d price %q", ErrInvalidCatalog, p.ID, p.Price)
		}
		products = append(products, domain.Product{
			ID:          p.ID,
			Name:        strings.TrimSpace(p.Name),
			Price:       price,
			Description: strings.TrimSpace(p.Description),
			Image:       strings.TrimSpace(p.Image),
		})
	}
	return New(products)
}

func (l loader) readGCS(ctx context.Context, source string) ([]byte, error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(source, gcsScheme), "/")
	if !ok || bucket == "" || object == "" {
		return nil, errors.New("expected gs://bucket/object")
	}
	rc, err := l.opener(ctx, bucket, object)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func openGCSObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &clientReader{Reader: rc, client: client}, nil
}

type clientReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *clientReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}
