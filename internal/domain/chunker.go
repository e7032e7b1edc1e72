package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ChunkerVersion defines the version of the chunking algorithm.
// This allows for future upgrades while tracking which version was used.
type ChunkerVersion string

const (
	// ChunkerVersionV1 is the fixed-window chunker ported from the first
	// ingestion scripts.
	ChunkerVersionV1 ChunkerVersion = "v1"
	// ChunkerVersionV2 adds semantic boundary selection, section header
	// carryforward, and dose-statement integrity.
	ChunkerVersionV2 ChunkerVersion = "v2"
)

// ChunkerOptions are the tunable parameters of the semantic chunker.
type ChunkerOptions struct {
	// TargetSize is the preferred chunk length in bytes.
	TargetSize int
	// MaxSize is the hard upper bound; a cut is forced before it.
	MaxSize int
	// Overlap is the maximum number of bytes a chunk repeats from its
	// predecessor for cross-chunk context at embedding time.
	Overlap int
	// Tolerance is the half-width of the window around TargetSize in
	// which a semantic boundary is accepted.
	Tolerance int
}

// DefaultChunkerOptions mirrors the production ingestion parameters.
func DefaultChunkerOptions() ChunkerOptions {
	return ChunkerOptions{TargetSize: 1500, MaxSize: 1800, Overlap: 200, Tolerance: 300}
}

func (o ChunkerOptions) withDefaults() ChunkerOptions {
	if o.TargetSize <= 0 {
		o.TargetSize = 1500
	}
	if o.Tolerance <= 0 {
		o.Tolerance = o.TargetSize / 5
	}
	if o.MaxSize <= o.TargetSize {
		o.MaxSize = o.TargetSize + o.Tolerance
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap > o.TargetSize/4 {
		o.Overlap = o.TargetSize / 4
	}
	return o
}

// Chunk is a passage precursor produced at ingestion time.
type Chunk struct {
	Ordinal int
	Content string
	// Section is the most recently detected section header at the chunk's
	// start, so headerless continuation chunks retain context.
	Section string
	// OverlapLen is the number of leading bytes repeated from the
	// previous chunk. Stripping it from every chunk after the first
	// reconstructs the normalized source text.
	OverlapLen int
	Hash       string
	Meta       ChunkMetadata
}

// Chunker defines the interface for splitting protocol text into chunks.
type Chunker interface {
	Chunk(text string) ([]Chunk, error)
	Version() ChunkerVersion
}

type semanticChunker struct {
	opts ChunkerOptions
}

// NewChunker creates the default semantic chunker.
func NewChunker() Chunker {
	return NewChunkerWithOptions(DefaultChunkerOptions())
}

// NewChunkerWithOptions creates a semantic chunker with explicit parameters.
func NewChunkerWithOptions(opts ChunkerOptions) Chunker {
	return &semanticChunker{opts: opts.withDefaults()}
}

func (c *semanticChunker) Version() ChunkerVersion {
	return ChunkerVersionV2
}

// Chunk splits text into overlapping chunks that respect semantic
// boundaries. Non-empty input always yields at least one chunk. A non-final
// chunk ends mid-sentence only when the max-size fallback triggers, and a
// boundary never falls inside a dosing statement.
func (c *semanticChunker) Chunk(text string) ([]Chunk, error) {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil, nil
	}

	headers := headerLines(normalized)

	if len(normalized) <= c.opts.MaxSize {
		return finalizeChunks(normalized, []cutPoint{{end: len(normalized), complete: endsOnSentence(normalized)}}, headers), nil
	}

	sentenceEnds := sentenceEndOffsets(normalized)
	paragraphBreaks := paragraphBreakOffsets(normalized)
	doseSpans := dosingSpans(normalized, sentenceEnds)

	headerStarts := make([]int, 0, len(headers))
	for _, h := range headers {
		if h.start > 0 {
			headerStarts = append(headerStarts, h.start)
		}
	}

	var cuts []cutPoint
	start := 0
	for start < len(normalized) {
		remaining := len(normalized) - start
		if remaining <= c.opts.MaxSize {
			cuts = append(cuts, cutPoint{start: start, end: len(normalized), complete: endsOnSentence(normalized)})
			break
		}

		target := start + c.opts.TargetSize
		lo := target - c.opts.Tolerance
		hi := target + c.opts.Tolerance
		if hi > start+c.opts.MaxSize {
			hi = start + c.opts.MaxSize
		}
		if lo <= start {
			lo = start + 1
		}

		cut, found := pickBoundary(target, lo, hi, paragraphBreaks, headerStarts, sentenceEnds)
		complete := true
		if !found {
			cut = hardCut(normalized, start, start+c.opts.MaxSize, doseSpans)
			complete = false
		}
		if cut <= start {
			// Degenerate input with no usable boundary at all.
			cut = start + c.opts.MaxSize
			complete = false
		}
		cuts = append(cuts, cutPoint{start: start, end: cut, complete: complete})

		next := snapOverlapStart(normalized, cut, c.opts.Overlap, sentenceEnds)
		if next <= start {
			next = cut
		}
		start = next
	}

	return finalizeChunks(normalized, cuts, headers), nil
}

type cutPoint struct {
	start    int
	end      int
	complete bool
}

// pickBoundary selects the semantic boundary closest to target inside
// [lo, hi]. Paragraph breaks win over headers, headers over sentence ends,
// when equally distant.
func pickBoundary(target, lo, hi int, paragraphBreaks, headerStarts, sentenceEnds []int) (int, bool) {
	best := -1
	bestDist := 1 << 30
	for _, candidates := range [][]int{paragraphBreaks, headerStarts, sentenceEnds} {
		for _, c := range candidates {
			if c < lo || c > hi {
				continue
			}
			dist := c - target
			if dist < 0 {
				dist = -dist
			}
			if dist < bestDist {
				best = c
				bestDist = dist
			}
		}
	}
	return best, best >= 0
}

// hardCut falls back to the last word boundary before max, pushed out of
// any dosing statement.
func hardCut(text string, start, max int, doseSpans [][2]int) int {
	cut := max
	if insideSpan(doseSpans, cut) {
		cut = spanStartBefore(doseSpans, cut)
	}
	// Never split mid-word.
	if cut < len(text) && text[cut] != ' ' && text[cut] != '\n' {
		idx := strings.LastIndexAny(text[start:cut], " \n")
		if idx > 0 {
			cut = start + idx + 1
		}
	}
	if insideSpan(doseSpans, cut) {
		cut = spanStartBefore(doseSpans, cut)
	}
	return cut
}

// snapOverlapStart walks back at most overlap bytes from cut to the nearest
// preceding sentence start, never landing mid-word.
func snapOverlapStart(text string, cut, overlap int, sentenceEnds []int) int {
	if overlap <= 0 {
		return cut
	}
	desired := cut - overlap
	if desired < 0 {
		desired = 0
	}
	for _, se := range sentenceEnds {
		if se >= desired && se < cut {
			return se
		}
		if se >= cut {
			break
		}
	}
	// No sentence start in the window; snap forward to a word boundary.
	idx := strings.IndexAny(text[desired:cut], " \n")
	if idx >= 0 && desired+idx+1 < cut {
		return desired + idx + 1
	}
	return cut
}

func endsOnSentence(text string) bool {
	t := strings.TrimRight(text, " \n")
	if t == "" {
		return false
	}
	switch t[len(t)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func finalizeChunks(text string, cuts []cutPoint, headers []headerLine) []Chunk {
	chunks := make([]Chunk, 0, len(cuts))
	for i, cp := range cuts {
		content := text[cp.start:cp.end]
		hashBytes := sha256.Sum256([]byte(content))

		overlapLen := 0
		if i > 0 {
			overlapLen = cuts[i-1].end - cp.start
		}

		chunks = append(chunks, Chunk{
			Ordinal:    i,
			Content:    content,
			Section:    sectionAt(headers, cp.start),
			OverlapLen: overlapLen,
			Hash:       hex.EncodeToString(hashBytes[:]),
			Meta: ChunkMetadata{
				ChunkIndex:  i,
				TotalChunks: len(cuts),
				IsComplete:  cp.complete,
				ContentType: ClassifyContent(content),
			},
		})
	}
	return chunks
}
