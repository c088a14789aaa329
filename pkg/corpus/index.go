// Package corpus provides the local retrieval index: documents are chunked
// into overlapping windows and ranked against queries with TF-IDF cosine
// similarity. The index is rebuilt wholesale and read-only afterwards.
package corpus

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"ma-assistant/internal/pkg/logger"
)

const (
	DefaultChunkChars = 900
	DefaultOverlap    = 150

	// Evidence text handed to agents is capped to keep prompts bounded.
	EvidenceTextLimit = 600

	placeholderName = "README_ADD_SOURCES.txt"
	placeholderText = "Add your own sources as .txt files to this directory (mini corpus).\n" +
		"For example excerpts from lecture notes, PDFs or scientific papers.\n"
)

// Chunk is one fixed-size window of a document's normalized text. ChunkID is
// 0-based and sequential within its document.
type Chunk struct {
	DocID   string
	ChunkID int
	Text    string
}

// ScoredChunk pairs a chunk with its query-time cosine similarity.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Index chunks a directory of plain-text documents and answers ranked
// lexical queries. Build once; concurrent searches after Build are safe.
type Index struct {
	dir        string
	chunkChars int
	overlap    int
	log        logger.ILogger

	mu      sync.Mutex
	built   bool
	chunks  []Chunk
	vocab   map[string]int
	idf     []float64
	vectors []map[int]float64 // l2-normalized TF-IDF per chunk
}

// NewIndex creates an index over dir. Zero chunkChars/overlap select the
// defaults (900/150).
func NewIndex(dir string, chunkChars, overlap int, log logger.ILogger) *Index {
	if chunkChars <= 0 {
		chunkChars = DefaultChunkChars
	}
	if overlap < 0 || overlap >= chunkChars {
		overlap = DefaultOverlap
	}
	return &Index{
		dir:        dir,
		chunkChars: chunkChars,
		overlap:    overlap,
		log:        log,
	}
}

// Build rebuilds the index from the corpus directory. It is idempotent: each
// call replaces the previous chunk collection entirely. An empty directory is
// seeded with a placeholder document so the index is never empty.
func (idx *Index) Build() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.buildLocked()
}

func (idx *Index) buildLocked() error {
	files, err := idx.listSources()
	if err != nil {
		return err
	}

	chunks := make([]Chunk, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			idx.log.Warn("corpus", "skipping unreadable source", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		// Tolerate broken encodings instead of aborting the whole build.
		text := Normalize(strings.ToValidUTF8(string(data), ""))
		docID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		for i, window := range splitWindows(text, idx.chunkChars, idx.overlap) {
			chunks = append(chunks, Chunk{DocID: docID, ChunkID: i, Text: window})
		}
	}

	idx.chunks = chunks
	idx.fit()
	idx.built = true

	idx.log.Info("corpus", "index built", map[string]interface{}{
		"documents": len(files),
		"chunks":    len(chunks),
	})
	return nil
}

func (idx *Index) listSources() ([]string, error) {
	pattern := filepath.Join(idx.dir, "*.txt")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("corpus: glob %s: %w", pattern, err)
	}
	sort.Strings(files)

	if len(files) > 0 {
		return files, nil
	}

	// Bootstrap: never fit the ranking model on zero samples.
	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return nil, fmt.Errorf("corpus: create dir %s: %w", idx.dir, err)
	}
	placeholder := filepath.Join(idx.dir, placeholderName)
	if _, err := os.Stat(placeholder); os.IsNotExist(err) {
		if err := os.WriteFile(placeholder, []byte(placeholderText), 0o644); err != nil {
			return nil, fmt.Errorf("corpus: write placeholder: %w", err)
		}
	}
	return []string{placeholder}, nil
}

// fit computes the TF-IDF model over the current chunk collection.
func (idx *Index) fit() {
	idx.vocab = make(map[string]int)
	docFreq := []int{}
	termCounts := make([]map[int]float64, len(idx.chunks))

	for i, c := range idx.chunks {
		counts := make(map[int]float64)
		for _, term := range tokenize(c.Text) {
			id, ok := idx.vocab[term]
			if !ok {
				id = len(idx.vocab)
				idx.vocab[term] = id
				docFreq = append(docFreq, 0)
			}
			if counts[id] == 0 {
				docFreq[id]++
			}
			counts[id]++
		}
		termCounts[i] = counts
	}

	n := float64(len(idx.chunks))
	idx.idf = make([]float64, len(docFreq))
	for id, df := range docFreq {
		// Smoothed IDF, never zero, so rare and common terms both contribute.
		idx.idf[id] = math.Log((1+n)/(1+float64(df))) + 1
	}

	idx.vectors = make([]map[int]float64, len(idx.chunks))
	for i, counts := range termCounts {
		vec := make(map[int]float64, len(counts))
		for id, tf := range counts {
			vec[id] = tf * idx.idf[id]
		}
		l2Normalize(vec)
		idx.vectors[i] = vec
	}
}

// Search returns up to topK chunks ranked by descending cosine similarity to
// query. Ties keep original chunk insertion order. Searching before Build
// triggers an implicit build.
func (idx *Index) Search(query string, topK int) ([]ScoredChunk, error) {
	idx.mu.Lock()
	if !idx.built {
		if err := idx.buildLocked(); err != nil {
			idx.mu.Unlock()
			return nil, err
		}
	}
	idx.mu.Unlock()

	qvec := make(map[int]float64)
	for _, term := range tokenize(Normalize(query)) {
		if id, ok := idx.vocab[term]; ok {
			qvec[id] += idx.idf[id]
		}
	}
	l2Normalize(qvec)

	results := make([]ScoredChunk, len(idx.chunks))
	for i, c := range idx.chunks {
		results[i] = ScoredChunk{Chunk: c, Score: dot(qvec, idx.vectors[i])}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize unifies line terminators and collapses whitespace runs to single
// spaces. Queries and documents must pass through the same normalizer.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// splitWindows cuts text into windows of chunkChars characters with the given
// overlap. Slicing is rune-based so multi-byte characters are never split at
// a window edge. The final window may be shorter; splitting stops once a
// window reaches the end of the text.
func splitWindows(text string, chunkChars, overlap int) []string {
	var windows []string
	runes := []rune(text)
	n := len(runes)
	start := 0
	for start < n {
		end := start + chunkChars
		if end > n {
			end = n
		}
		windows = append(windows, string(runes[start:end]))
		if end == n {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	if len(windows) == 0 {
		windows = []string{""}
	}
	return windows
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func l2Normalize(vec map[int]float64) {
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for id, w := range vec {
		vec[id] = w / norm
	}
}

func dot(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for id, w := range a {
		sum += w * b[id]
	}
	return sum
}
