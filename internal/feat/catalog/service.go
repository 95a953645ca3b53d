package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/patientcare/offers/pkg/pc/config"
	"github.com/patientcare/offers/pkg/pc/logger"
	"gopkg.in/yaml.v3"
)

var (
	ErrOfferNotFound = errors.New("offer not found")
	ErrEmptyCatalog  = errors.New("catalog has no offers")
)

// Service exposes the read-only offer catalog.
type Service interface {
	Start(ctx context.Context) error
	List(ctx context.Context) []*Offer
	Get(ctx context.Context, slug string) (*Offer, error)
}

type service struct {
	embedded []byte
	offers   []*Offer
	bySlug   map[string]*Offer
	cfg      *config.Config
	log      logger.Logger
}

// NewService creates the catalog service. embedded is the compiled-in catalog,
// used unless cfg.Offers.Path names a file.
func NewService(embedded []byte, cfg *config.Config, log logger.Logger) Service {
	return &service{
		embedded: embedded,
		cfg:      cfg,
		log:      log,
	}
}

// Start loads and renders the catalog once. It never changes afterwards.
func (s *service) Start(ctx context.Context) error {
	data := s.embedded
	source := "embedded catalog"
	if s.cfg.Offers.Path != "" {
		b, err := os.ReadFile(s.cfg.Offers.Path)
		if err != nil {
			return fmt.Errorf("cannot read catalog %s: %w", s.cfg.Offers.Path, err)
		}
		data = b
		source = s.cfg.Offers.Path
	}

	offers, err := parseCatalog(data)
	if err != nil {
		return fmt.Errorf("cannot load %s: %w", source, err)
	}

	s.offers = offers
	s.bySlug = make(map[string]*Offer, len(offers))
	for _, o := range offers {
		s.bySlug[o.Slug] = o
	}

	s.log.Infof("Catalog loaded from %s: %d offer(s)", source, len(offers))
	return nil
}

func parseCatalog(data []byte) ([]*Offer, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("cannot parse catalog: %w", err)
	}
	if len(file.Offers) == 0 {
		return nil, ErrEmptyCatalog
	}

	md := newMarkdown()
	seen := make(map[string]bool, len(file.Offers))
	for i, o := range file.Offers {
		if o.Name == "" {
			return nil, fmt.Errorf("offer #%d has no name", i)
		}
		o.Slug = Slugify(o.Name)
		if seen[o.Slug] {
			return nil, fmt.Errorf("duplicate offer %q", o.Slug)
		}
		seen[o.Slug] = true

		html, err := md.toHTML(o.Description)
		if err != nil {
			return nil, fmt.Errorf("offer %q: %w", o.Slug, err)
		}
		o.DescriptionHTML = html
	}
	return file.Offers, nil
}

func (s *service) List(ctx context.Context) []*Offer {
	return s.offers
}

func (s *service) Get(ctx context.Context, slug string) (*Offer, error) {
	o, ok := s.bySlug[slug]
	if !ok {
		return nil, ErrOfferNotFound
	}
	return o, nil
}
