package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
	"github.com/joseph-ayodele/invoice-bench/internal/schema"
)

// payload is the wire shape shared by replay files and HTTP responses.
type payload struct {
	Fields  map[string]any `json:"fields"`
	RawText string         `json:"raw_text"`
	Timings struct {
		Extraction float64 `json:"extraction"`
		Processing float64 `json:"processing"`
		Total      float64 `json:"total"`
	} `json:"timings"`
	PageCount int `json:"page_count"`
}

// decodePayload validates raw against the payload schema and converts it. When
// strict validation fails the field object is sanitized and validated once more.
func decodePayload(s *schema.Schema, raw []byte) (Extraction, []string, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Extraction{}, nil, common.NewAppError("INVALID_PAYLOAD", "payload is not a JSON object", fmt.Errorf("%w: %w", common.ErrValidation, err))
	}

	var sanitized []string
	if err := s.Validate(doc); err != nil {
		fields, ok := doc["fields"].(map[string]any)
		if !ok {
			return Extraction{}, nil, common.NewAppError("INVALID_PAYLOAD", "payload has no fields object", fmt.Errorf("%w: %w", common.ErrValidation, err))
		}
		doc["fields"], sanitized = SanitizeFields(fields)
		if vErr := s.Validate(doc); vErr != nil {
			return Extraction{}, sanitized, common.NewAppError("INVALID_PAYLOAD", "payload does not match schema", fmt.Errorf("%w: %w", common.ErrValidation, vErr))
		}
		if raw, err = json.Marshal(doc); err != nil {
			return Extraction{}, sanitized, fmt.Errorf("re-encode payload: %w", err)
		}
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Extraction{}, sanitized, common.NewAppError("INVALID_PAYLOAD", "decode payload", fmt.Errorf("%w: %w", common.ErrValidation, err))
	}

	rec, unknown, err := entity.RecordFromMap(p.Fields)
	if err != nil {
		return Extraction{}, sanitized, common.NewAppError("INVALID_PAYLOAD", "decode fields", fmt.Errorf("%w: %w", common.ErrValidation, err))
	}

	return Extraction{
		Record:  rec,
		RawText: p.RawText,
		Timings: Timings{
			Extraction: seconds(p.Timings.Extraction),
			Processing: seconds(p.Timings.Processing),
			Total:      seconds(p.Timings.Total),
		}.Normalized(),
		PageCount: p.PageCount,
		Dropped:   unknown,
	}, sanitized, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
