package knowledge

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	logx "github.com/lofty-concierge/server/pkg/logger"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk splits text into pieces of at most size bytes on word boundaries.
// Consecutive chunks share up to overlap bytes of trailing words.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	length := 0
	for _, w := range words {
		if length > 0 && length+1+len(w) > size {
			chunks = append(chunks, strings.Join(current, " "))
			current, length = tail(current, overlap)
		}
		if length > 0 {
			length++
		}
		current = append(current, w)
		length += len(w)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// tail keeps the last words whose joined length fits in overlap.
func tail(words []string, overlap int) ([]string, int) {
	length := 0
	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		add := len(words[i])
		if length > 0 {
			add++
		}
		if length+add > overlap {
			break
		}
		length += add
		start = i
	}
	return append([]string(nil), words[start:]...), length
}

// Documents chunks one source text into indexable documents.
func Documents(source, topic, role, text string) []Document {
	chunks := Chunk(text, DefaultChunkSize, DefaultChunkOverlap)
	docs := make([]Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, Document{
			ID:     fmt.Sprintf("%s#%d", source, i),
			Text:   c,
			Source: source,
			Topic:  topic,
			Role:   role,
		})
	}
	return docs
}

// IngestDir indexes every .md and .txt file under dir plus the business rules.
// It returns the number of documents written.
func IngestDir(idx *BleveIndex, dir string) (int, error) {
	docs := BusinessRules()
	if dir != "" {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".md" && ext != ".txt" {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				rel = filepath.Base(path)
			}
			docs = append(docs, Documents(filepath.ToSlash(rel), "document", "all", string(data))...)
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("walk knowledge directory: %w", err)
		}
	}

	if err := idx.Index(docs...); err != nil {
		return 0, err
	}
	logx.Info().Str("dir", dir).Int("documents", len(docs)).Msg("Knowledge ingested")
	return len(docs), nil
}
