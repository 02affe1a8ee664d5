package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-bench/internal/entity"
)

// Extractor runs one extraction pipeline variant over one document.
//
//go:generate mockgen -destination=mocks/mock_extractor.go -package=mock_extract -source=contracts.go Extractor
type Extractor interface {
	Extract(ctx context.Context, documentPath, variant string) (Extraction, error)
}

// Timings is the duration breakdown reported by the collaborator.
type Timings struct {
	Extraction time.Duration // model or engine time
	Processing time.Duration // everything else
	Total      time.Duration
}

// Normalized fills Total with the sum of the parts when it was not reported.
func (t Timings) Normalized() Timings {
	if t.Total <= 0 {
		t.Total = t.Extraction + t.Processing
	}
	return t
}

// Extraction is the collaborator's result for one (document, variant) pair.
type Extraction struct {
	Record    entity.Record
	RawText   string
	Timings   Timings
	PageCount int
	// Dropped lists payload keys that were not schema fields.
	Dropped []string
}
