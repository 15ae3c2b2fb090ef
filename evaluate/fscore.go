package evaluate

// FScoreThresholds are the distance thresholds, in normalized units, at which
// precision, recall and F-score are reported.
var FScoreThresholds = [6]float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2}

// CalculateFScore returns the F-score, precision and recall at threshold.
// Precision is the fraction of accuracy distances below threshold and recall
// the fraction of completeness distances below threshold. The F-score is 0
// when both are 0.
func CalculateFScore(accuracy, completeness []float64, threshold float64) (fscore, precision, recall float64) {
	recall = fractionBelow(completeness, threshold)
	precision = fractionBelow(accuracy, threshold)
	if precision+recall > 0 {
		fscore = 2 * recall * precision / (recall + precision)
	}
	return fscore, precision, recall
}

func fractionBelow(d []float64, threshold float64) float64 {
	n := 0
	for _, v := range d {
		if v < threshold {
			n++
		}
	}
	return float64(n) / float64(len(d))
}
