package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
	"github.com/joseph-ayodele/invoice-bench/internal/schema"
)

//go:generate mockgen -destination=mocks/mock_repository.go -package=mock_repository -source=reference.go ReferenceRepository

// ReferenceRepository loads the reference record of a document.
type ReferenceRepository interface {
	// Load returns the reference record stored for document (the file stem).
	Load(ctx context.Context, document string) (entity.Record, error)
}

type referenceRepo struct {
	dir    string
	schema *schema.Schema
	log    *slog.Logger
}

// NewReferenceRepository reads reference records from "<dir>/<document>.json".
func NewReferenceRepository(dir string, log *slog.Logger) ReferenceRepository {
	if log == nil {
		log = slog.Default()
	}
	return &referenceRepo{dir: dir, schema: schema.Reference(), log: log}
}

func (r *referenceRepo) Load(ctx context.Context, document string) (entity.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(r.dir, document+"."+constants.ReferenceExt)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NewAppError("REFERENCE_MISSING", path, common.ErrNotFound)
		}
		return nil, fmt.Errorf("read reference: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, common.NewAppError("INVALID_REFERENCE", path, fmt.Errorf("%w: %w", common.ErrValidation, err))
	}
	doc = entity.CanonicalKeys(doc)
	if err := r.schema.Validate(doc); err != nil {
		r.log.Warn("reference.invalid", "document", document, "error", err)
		return nil, common.NewAppError("INVALID_REFERENCE", path, fmt.Errorf("%w: %w", common.ErrValidation, err))
	}

	rec, unknown, err := entity.RecordFromMap(doc)
	if err != nil {
		return nil, common.NewAppError("INVALID_REFERENCE", path, fmt.Errorf("%w: %w", common.ErrValidation, err))
	}
	if len(unknown) > 0 {
		r.log.Debug("reference.unknown_keys", "document", document, "keys", unknown)
	}
	return rec, nil
}
