package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/go-recog/internal/align"
	"github.com/example/go-recog/internal/feat"
	"github.com/example/go-recog/internal/lexicon"
	"github.com/example/go-recog/internal/search"
	"github.com/example/go-recog/internal/segment"
	"github.com/example/go-recog/internal/stack"
	"github.com/example/go-recog/internal/trellis"
	"github.com/example/go-recog/internal/verify"
)

// Status is the per-utterance result code of spec.md §7: zero on success,
// negative for the three rejection/failure classes the original engine
// distinguishes on its command-line and module-mode interfaces.
type Status int

const (
	StatusOK            Status = 0
	StatusSearchFailed  Status = -1
	StatusInputTooShort Status = -2
	StatusGMMReject     Status = -3
)

// Code returns the exit/status-code value spec.md §7 assigns this status.
func (s Status) Code() int { return int(s) }

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSearchFailed:
		return "search failed"
	case StatusInputTooShort:
		return "input too short"
	case StatusGMMReject:
		return "GMM reject"
	default:
		return "unknown"
	}
}

// ErrInputTooShort is the Event.Err value of a StatusInputTooShort result:
// the utterance produced fewer feature vectors than the pipeline's
// delta+accel latency, so no Pass-1 trellis atom was ever emitted.
var ErrInputTooShort = errors.New("engine: input shorter than delta+accel latency")

// EventKind tags an Event's payload, replacing a callback table with one
// tagged-union-shaped struct and a single Sink.Accept method.
type EventKind int

const (
	EventSegmentBoundary EventKind = iota
	EventResult
	EventRejected
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventSegmentBoundary:
		return "segment_boundary"
	case EventResult:
		return "result"
	case EventRejected:
		return "rejected"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is emitted once per completed segment (or once at utterance end
// for whatever segment is still open).
type Event struct {
	Kind      EventKind
	Segment   int
	Status    Status
	Sentence  []int // dictionary-entry word ids, in order
	Words     []string
	Verdict   verify.Verdict
	Alignment *align.Result
	Err       error
}

// Sink receives Events as they are produced. Implementations must not
// block the feed loop for long, since Pass 1 for the next segment is
// already under way by the time a segment's Event fires.
type Sink interface {
	Accept(Event)
}

// Config carries every tunable the wired-together components need.
type Config struct {
	Search              search.Config
	Decoder             stack.Config
	Verify              verify.Config
	ShortPauseMinFrames int
	Align               bool // run the forced aligner on each segment's winning sentence
}

// Recog drives one audio stream's recognition: Pass 1 and GMM
// verification run per frame, a short-pause segmenter decides when to
// close a segment, and Pass 2 (plus optional alignment) runs on the
// closed span before the next segment's Pass 1 begins.
type Recog struct {
	model *Model
	tree  *lexicon.Tree
	cfg   Config
	sink  Sink

	pipe       *feat.Pipeline
	fwdScorer  search.Scorer
	backScorer stack.Scorer
	candidates stack.Candidates

	searcher *search.Searcher
	seg      *segment.Segmenter
	verifier *verify.Verifier

	segIdx    int
	segStart  int // absolute frame at which the current segment began
	segFrames [][]float64
}

// New returns a Recog ready to accept its first fragment. tree selects
// which lexicon tree Pass 1 searches (the global N-gram tree, or the
// category tree for whichever grammar is active); swapping trees after a
// grammar ApplyPending means building a new Recog for the next utterance,
// matching spec.md §5's rule that grammar mutations apply only between
// utterances.
func New(model *Model, tree *lexicon.Tree, cfg Config, pipe *feat.Pipeline, sink Sink) *Recog {
	fwd, back, cands := buildScorers(model)
	r := &Recog{
		model:      model,
		tree:       tree,
		cfg:        cfg,
		sink:       sink,
		pipe:       pipe,
		fwdScorer:  fwd,
		backScorer: back,
		candidates: cands,
		seg:        segment.New(model.ShortPauseWordID, cfg.ShortPauseMinFrames),
		verifier:   verify.New(model.GMMs, cfg.Verify, cfg.Search.GaussMode, cfg.Search.GaussTopK, cfg.Search.GaussWindow),
	}
	r.searcher = search.New(tree, fwd, cfg.Search)
	return r
}

// Begin resets all per-utterance state, including the MFCC pipeline,
// ready for a brand new utterance (as opposed to a mid-utterance segment
// boundary, where the pipeline's delta/accel/CMN state is deliberately
// carried over per spec.md §4.8).
func (r *Recog) Begin() {
	r.pipe.Begin()
	r.startSegment(0)
}

func (r *Recog) startSegment(frame int) {
	r.segStart = frame
	r.segFrames = nil
	r.seg.Reset()
	r.verifier.Reset()
}

// Feed appends raw PCM16 samples, running Pass 1 and verification over
// every feature vector that becomes available, and closes+reopens a
// segment whenever the short-pause segmenter fires.
func (r *Recog) Feed(ctx context.Context, samples []int16) error {
	for _, fv := range r.pipe.ProcessFragment(samples) {
		if err := r.processFrame(ctx, fv); err != nil {
			return err
		}
	}
	return nil
}

// End flushes the pipeline's trailing frames and closes out whatever
// segment is still open, as the stream's final segment.
func (r *Recog) End(ctx context.Context) error {
	for _, fv := range r.pipe.Flush() {
		if err := r.processFrame(ctx, fv); err != nil {
			return err
		}
	}
	r.searcher.End()
	return r.closeSegment(ctx)
}

func (r *Recog) processFrame(ctx context.Context, fv feat.FeatureVector) error {
	vec := fv.Flat()
	frameIdx := len(r.segFrames)

	beforeAtoms := r.searcher.Trellis().Len()
	r.searcher.ProcessFrame(vec)
	r.segFrames = append(r.segFrames, vec)

	if err := r.verifier.ProcessFrame(ctx, vec); err != nil {
		return err
	}

	bestWord := latestBestWord(r.searcher.Trellis(), beforeAtoms)
	if boundary, ok := r.seg.Observe(frameIdx, bestWord); ok {
		r.searcher.Segment()
		r.sink.Accept(Event{Kind: EventSegmentBoundary, Segment: r.segIdx})
		if err := r.closeSegment(ctx); err != nil {
			return err
		}
		r.startSegment(r.segStart + boundary + 1)
		r.searcher = search.New(r.tree, r.fwdScorer, r.cfg.Search)
		return nil
	}

	if r.searcher.Phase() == search.PhaseFailed {
		r.sink.Accept(Event{Kind: EventFailed, Segment: r.segIdx, Status: StatusSearchFailed})
	}
	return nil
}

// latestBestWord returns the word id of the highest-scoring trellis atom
// added since beforeAtoms, or -1 if none was added this frame. A new
// atom is added every frame the current best path sits in a word-end
// node's self-loop (internal/search's emitWordEnd), so this is exactly
// the "Pass-1 best trellis atom per frame" spec.md §4.8 asks the
// segmenter to watch.
func latestBestWord(tr *trellis.Trellis, beforeAtoms int) int {
	best := -1
	bestScore := negInf
	for id := beforeAtoms; id < tr.Len(); id++ {
		a := tr.Atom(id)
		if a.Score > bestScore {
			bestScore = a.Score
			best = a.WordID
		}
	}
	return best
}

// closeSegment runs Pass 2 (and, if configured, forced alignment) over
// the segment just finished and emits its Event.
func (r *Recog) closeSegment(ctx context.Context) error {
	tr := r.searcher.Trellis()
	tr.Finalize()

	// spec.md §4.1: an utterance (or segment) shorter than the combined
	// delta+accel latency never fills the pipeline's cyclic buffers, so
	// it never emits a feature vector for Pass 1 to score. Report this
	// distinctly rather than silently dropping the segment.
	if len(r.segFrames) < r.pipe.Latency() {
		r.sink.Accept(Event{Kind: EventFailed, Segment: r.segIdx, Status: StatusInputTooShort, Err: ErrInputTooShort})
		r.segIdx++
		return nil
	}
	lastFrame := len(r.segFrames) - 1

	heur := stack.BuildHeuristic(tr, lastFrame)
	dec := stack.NewDecoder(tr, heur, r.backScorer, r.candidates, r.cfg.Decoder)
	sentences, err := dec.Run(ctx, lastFrame)
	if err != nil {
		return fmt.Errorf("engine: segment %d: pass 2: %w", r.segIdx, err)
	}

	var sentence []int
	switch {
	case len(sentences) > 0:
		sort.Slice(sentences, func(i, j int) bool { return sentences[i].G > sentences[j].G })
		sentence = sentences[0].Sentence()
	default:
		sentence = r.fallbackSentence(tr)
	}

	verdict, _ := r.verifier.Result()

	evt := Event{Kind: EventResult, Segment: r.segIdx, Status: StatusOK, Sentence: sentence, Verdict: verdict}
	for _, w := range sentence {
		if w >= 0 && w < len(r.model.Dict.Entries) {
			evt.Words = append(evt.Words, r.model.Dict.Entries[w].Output)
		}
	}
	if verdict.Rejected {
		evt.Kind = EventRejected
		evt.Status = StatusGMMReject
	}

	if r.cfg.Align && len(sentence) > 0 {
		spans := make([]align.WordSpan, len(sentence))
		for i, w := range sentence {
			spans[i] = align.WordSpan{WordID: w, HMMs: r.model.Pron(w)}
		}
		res, err := align.Run(spans, align.Config{
			GaussMode:        r.cfg.Search.GaussMode,
			GaussTopK:        r.cfg.Search.GaussTopK,
			GaussWindow:      r.cfg.Search.GaussWindow,
			VarianceInverted: r.cfg.Search.VarianceInvert,
		}, r.segFrames)
		if err == nil {
			evt.Alignment = res
		}
	}

	r.sink.Accept(evt)
	r.segIdx++
	return nil
}

// fallbackSentence recovers a word sequence from Pass 1 alone (via the
// current best live token's backtrace) when Pass 2 found no completed
// hypothesis — e.g. a segment too short for the stack decoder to finish
// a sentence within its pop budget.
func (r *Recog) fallbackSentence(tr *trellis.Trellis) []int {
	tok, ok := r.searcher.Best()
	if !ok {
		return nil
	}
	atoms := tr.Backtrace(tok.PrevWordEnd)
	out := make([]int, len(atoms))
	for i, a := range atoms {
		out[i] = a.WordID
	}
	return out
}
