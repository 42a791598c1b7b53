package assessment

import (
	"math"
	"time"

	"assessd/internal/model"
)

// Weights blends descriptor and situational shares into one axis score.
// Only the ratio between the two matters.
type Weights struct {
	Descriptor  float64 `json:"descriptor"`
	Situational float64 `json:"situational"`
}

// DefaultWeights favors the situational phase, which has a fixed length
var DefaultWeights = Weights{Descriptor: 0.4, Situational: 0.6}

func (w Weights) valid() bool {
	sum := w.Descriptor + w.Situational
	return w.Descriptor >= 0 && w.Situational >= 0 && sum > 0 && !math.IsInf(sum, 0)
}

// Scorer reduces a complete ledger into a ScoreResult
type Scorer struct {
	weights Weights
	now     func() time.Time
}

// NewScorer returns a scorer with w, falling back to DefaultWeights when w
// is negative, all zero or not finite.
func NewScorer(w Weights) *Scorer {
	if !w.valid() {
		w = DefaultWeights
	}
	return &Scorer{weights: w, now: time.Now}
}

func (s *Scorer) Weights() Weights { return s.weights }

// Score computes the result for seq from l. It fails with
// ErrIncompleteAssessment when a required response is missing and never
// modifies l.
func (s *Scorer) Score(sessionID string, seq model.Sequence, l *Ledger) (*model.ScoreResult, error) {
	result := &model.ScoreResult{
		SessionID:  sessionID,
		Instrument: seq.Instrument,
	}
	switch seq.Instrument {
	case model.InstrumentDISC:
		disc, err := scoreDISC(seq, l)
		if err != nil {
			return nil, err
		}
		result.DISC = disc
	case model.InstrumentPI:
		pi, err := s.scorePI(seq, l)
		if err != nil {
			return nil, err
		}
		result.PI = pi
	default:
		return nil, catalogErr("unknown instrument %q", seq.Instrument)
	}
	result.ComputedAt = s.now().UTC()
	return result, nil
}

func scoreDISC(seq model.Sequence, l *Ledger) (*model.DISCResult, error) {
	if len(seq.Slots) == 0 || !l.IsComplete(seq, "") {
		return nil, ErrIncompleteAssessment
	}

	var counts model.TraitScores
	total := 0
	for _, slot := range seq.Slots {
		r, _ := l.Get(slot.Key())
		counts.Add(r.Trait, 1)
		total++
	}

	pct := Percentages(counts, total)
	primary, secondary := Classify(pct)
	overall := 0
	for _, t := range model.Traits {
		overall = max(overall, pct.Get(t))
	}
	return &model.DISCResult{
		Counts:         counts,
		Percentages:    pct,
		TotalAnswered:  total,
		PrimaryTrait:   primary,
		SecondaryTrait: secondary,
		OverallScore:   overall,
		Profile:        ProfileFor(primary),
	}, nil
}

// Percentages normalizes counts against total, rounding half up. The sum
// may drift from 100 by rounding.
func Percentages(counts model.TraitScores, total int) model.TraitScores {
	var pct model.TraitScores
	if total <= 0 {
		return pct
	}
	for _, t := range model.Traits {
		pct.Add(t, percent(counts.Get(t), total))
	}
	return pct
}

// Classify picks the primary trait as the highest percentage and the
// secondary as the highest of the rest. Ties go to the earlier trait in
// D, I, S, C order.
func Classify(pct model.TraitScores) (primary, secondary model.Trait) {
	primary = argmax(pct, "")
	secondary = argmax(pct, primary)
	return primary, secondary
}

func argmax(pct model.TraitScores, exclude model.Trait) model.Trait {
	var best model.Trait
	bestScore := -1
	for _, t := range model.Traits {
		if t == exclude {
			continue
		}
		if v := pct.Get(t); v > bestScore {
			best, bestScore = t, v
		}
	}
	return best
}

func (s *Scorer) scorePI(seq model.Sequence, l *Ledger) (*model.PIResult, error) {
	natural, err := s.blockScores(seq, l, model.BlockNatural)
	if err != nil {
		return nil, err
	}
	adapted, err := s.blockScores(seq, l, model.BlockAdapted)
	if err != nil {
		return nil, err
	}

	axes := make([]model.AxisScore, 0, len(model.Axes))
	for _, a := range model.Axes {
		axes = append(axes, model.AxisScore{
			Axis:         a,
			NaturalScore: natural[a],
			AdaptedScore: adapted[a],
			Gap:          adapted[a] - natural[a],
		})
	}
	maxGap, severity := Severity(axes)
	return &model.PIResult{
		Axes:          axes,
		MaxAbsGap:     maxGap,
		Severity:      severity,
		SeverityNote:  SeverityNote(severity),
		DescriptorWt:  s.weights.Descriptor,
		SituationalWt: s.weights.Situational,
	}, nil
}

// blockScores combines one block's descriptor and situational selections:
//
//	score[a] = round(100 * (wD*desc[a]/descTotal + wS*sit[a]/sitTotal) / (wD+wS))
//
// Each share sums to 1 within the block, so the block's scores sum to 100
// up to rounding and are independent of the other block.
func (s *Scorer) blockScores(seq model.Sequence, l *Ledger, block model.Block) (map[model.Axis]int, error) {
	descTotal := l.Count(model.PhaseDescriptor, block)
	if descTotal == 0 || !l.IsComplete(seq, block) {
		return nil, ErrIncompleteAssessment
	}

	desc := make(map[model.Axis]int, len(model.Axes))
	for _, r := range l.Responses() {
		if r.Phase == model.PhaseDescriptor && r.Block == block {
			desc[r.Axis]++
		}
	}
	sit := make(map[model.Axis]int, len(model.Axes))
	sitTotal := 0
	for _, slot := range seq.Slots {
		if slot.Block != block || slot.Phase != model.PhaseSituational {
			continue
		}
		r, _ := l.Get(slot.Key())
		sit[r.Axis]++
		sitTotal++
	}
	if sitTotal == 0 {
		return nil, ErrIncompleteAssessment
	}

	wD, wS := s.weights.Descriptor, s.weights.Situational
	scores := make(map[model.Axis]int, len(model.Axes))
	for _, a := range model.Axes {
		share := wD*float64(desc[a])/float64(descTotal) + wS*float64(sit[a])/float64(sitTotal)
		scores[a] = int(math.Round(100 * share / (wD + wS)))
	}
	return scores, nil
}

// Severity returns the largest absolute gap across axes and its band
func Severity(axes []model.AxisScore) (int, model.GapSeverity) {
	maxGap := 0
	for _, a := range axes {
		g := a.Gap
		if g < 0 {
			g = -g
		}
		maxGap = max(maxGap, g)
	}
	return maxGap, ClassifyGap(maxGap)
}

// ClassifyGap maps an absolute gap to its band: 0-10, 11-25, 26 and above
func ClassifyGap(absGap int) model.GapSeverity {
	switch {
	case absGap <= 10:
		return model.GapSustainable
	case absGap <= 25:
		return model.GapNeedsAttention
	default:
		return model.GapHighEffort
	}
}

func percent(n, total int) int {
	return int(math.Round(float64(n) * 100 / float64(total)))
}
