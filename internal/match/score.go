package match

import (
	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/canon"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
)

// Verdict is the comparison result of one field.
type Verdict struct {
	Field    constants.Field
	Expected entity.Value
	Observed entity.Value
	Match    bool
}

// Scorecard holds the per-field verdicts and the metrics of one record pair.
type Scorecard struct {
	Verdicts []Verdict
	Correct  int
	TP       int
	FP       int
	FN       int

	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	Accepted  bool
	Branch    Branch
}

// Verdict returns the verdict of field.
func (s Scorecard) Verdict(field constants.Field) (Verdict, bool) {
	for _, v := range s.Verdicts {
		if v.Field == field {
			return v, true
		}
	}
	return Verdict{}, false
}

// Score compares every schema field of cand against ref.
//
// A matching field with a non-blank reference value is a true positive. A
// mismatch counts as a false negative when the reference value is non-blank and
// as a false positive when the candidate value is non-blank; it can be both.
func Score(ref, cand entity.Record) Scorecard {
	fields := constants.AllFields()
	sc := Scorecard{Verdicts: make([]Verdict, 0, len(fields))}

	for _, f := range fields {
		exp, obs := ref.Get(f), cand.Get(f)
		ok := IsMatch(f, exp, obs)
		sc.Verdicts = append(sc.Verdicts, Verdict{Field: f, Expected: exp, Observed: obs, Match: ok})

		if ok {
			sc.Correct++
			if !exp.IsBlank() {
				sc.TP++
			}
			continue
		}
		if !exp.IsBlank() {
			sc.FN++
		}
		if !obs.IsBlank() {
			sc.FP++
		}
	}

	sc.Accuracy = canon.Round3(float64(sc.Correct) / float64(len(fields)))
	sc.Precision, sc.Recall, sc.F1 = Metrics(sc.TP, sc.FP, sc.FN)
	sc.Branch = SelectBranch(ref)
	sc.Accepted = IsAcceptable(ref, cand)
	return sc
}

// Metrics computes precision, recall and F1 rounded to 3 decimals. A zero
// denominator yields 0.
func Metrics(tp, fp, fn int) (precision, recall, f1 float64) {
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return canon.Round3(precision), canon.Round3(recall), canon.Round3(f1)
}
