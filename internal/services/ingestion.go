package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"study-ai/internal/extract"
	"study-ai/internal/models"
	"study-ai/internal/vectorstore"
)

// ProgressCallback is called during document processing to report progress
type ProgressCallback func(step, message string, current, total int)

const (
	chunkSize    = 1000
	chunkOverlap = 200
	// Units embedded per provider call when indexing a document.
	embedBatchSize = 24
)

// IngestionService turns raw documents into content units, embeds them
// through the cache, and adds them to the vector store.
type IngestionService struct {
	embeddings *EmbeddingService
	store      vectorstore.Storage
}

func NewIngestionService(embeddings *EmbeddingService, store vectorstore.Storage) *IngestionService {
	return &IngestionService{embeddings: embeddings, store: store}
}

// ChunkText splits free text into overlapping windows so a concept spanning
// a boundary stays retrievable from at least one chunk. Empty input yields
// no chunks.
func ChunkText(content string) []string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) == 0 {
		return nil
	}
	step := chunkSize - chunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// IndexDocument extracts, chunks or slices, embeds, and stores a course
// material document. The unit count is returned; an empty document indexes
// zero units without error. DisplayName decouples the stored temp path from
// the user-facing name on every unit.
func (s *IngestionService) IndexDocument(ctx context.Context, doc *models.Document, progress ProgressCallback) (int, error) {
	switch strings.ToLower(filepath.Ext(doc.StoredPath)) {
	case ".pptx":
		slides, err := extract.PPTXSlides(doc.StoredPath)
		if err != nil {
			return 0, fmt.Errorf("extract slides: %w", err)
		}
		return s.IndexSlides(ctx, doc.StoredPath, doc.OriginalName, slides, progress)
	case ".pdf":
		pages, err := extract.PDFPages(doc.StoredPath)
		if err != nil {
			return 0, fmt.Errorf("extract pdf: %w", err)
		}
		var b strings.Builder
		for _, p := range pages {
			fmt.Fprintf(&b, "\n--- Page %d ---\n", p.Number)
			b.WriteString(p.Text)
		}
		return s.IndexText(ctx, doc.StoredPath, doc.OriginalName, b.String(), progress)
	case ".txt", ".md":
		data, err := readFileText(doc.StoredPath)
		if err != nil {
			return 0, fmt.Errorf("read text: %w", err)
		}
		return s.IndexText(ctx, doc.StoredPath, doc.OriginalName, data, progress)
	default:
		return 0, fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, filepath.Ext(doc.StoredPath))
	}
}

// IndexText chunks free text into units tagged documentType=text.
func (s *IngestionService) IndexText(ctx context.Context, sourceDoc, displayName, content string, progress ProgressCallback) (int, error) {
	chunks := ChunkText(content)
	if len(chunks) == 0 {
		return 0, nil
	}
	units := make([]models.ContentUnit, len(chunks))
	for i, chunk := range chunks {
		units[i] = models.ContentUnit{
			ID:             unitID(sourceDoc, i+1),
			Text:           chunk,
			SourceDocument: sourceDoc,
			Position:       i + 1,
			Type:           models.UnitText,
			DisplayName:    displayName,
		}
	}
	return len(units), s.indexUnits(ctx, units, progress)
}

// IndexSlides stores one unit per slide, position = slide number. Slide text
// is the shape text plus speaker notes; slides with no text are skipped.
func (s *IngestionService) IndexSlides(ctx context.Context, sourceDoc, displayName string, slides []extract.Slide, progress ProgressCallback) (int, error) {
	var units []models.ContentUnit
	for _, slide := range slides {
		if strings.TrimSpace(slide.Text) == "" && strings.TrimSpace(slide.Notes) == "" {
			continue
		}
		units = append(units, models.ContentUnit{
			ID:             unitID(sourceDoc, slide.Number),
			Text:           slide.Content(),
			SourceDocument: sourceDoc,
			Position:       slide.Number,
			Type:           models.UnitSlide,
			DisplayName:    displayName,
		})
	}
	if len(units) == 0 {
		return 0, nil
	}
	return len(units), s.indexUnits(ctx, units, progress)
}

func (s *IngestionService) indexUnits(ctx context.Context, units []models.ContentUnit, progress ProgressCallback) error {
	for start := 0; start < len(units); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(units) {
			end = len(units)
		}
		batch := units[start:end]

		texts := make([]string, len(batch))
		for i, unit := range batch {
			texts[i] = unit.Text
		}
		vectors, err := s.embeddings.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed units: %w", err)
		}
		if err := s.store.Upsert(batch, vectors); err != nil {
			return fmt.Errorf("store units: %w", err)
		}
		if progress != nil {
			progress("index", fmt.Sprintf("Indexed %d of %d units", end, len(units)), end, len(units))
		}
	}
	return nil
}

func readFileText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unitID derives the stable unit identity from the source document and
// position, mirroring how reindexing stays idempotent in the store.
func unitID(sourceDoc string, position int) string {
	stem := strings.TrimSuffix(filepath.Base(sourceDoc), filepath.Ext(sourceDoc))
	return fmt.Sprintf("%s_%d", stem, position)
}
