package evaluate

import "math"

// Binarize returns the mask of values >= level.
func Binarize(values []float64, level float64) []bool {
	mask := make([]bool, len(values))
	for i, v := range values {
		mask[i] = v >= level
	}
	return mask
}

// ComputeIoU returns the intersection over union of two occupancy masks of
// equal length. It returns 0 when both masks are entirely false.
func ComputeIoU(occ1, occ2 []bool) float64 {
	if len(occ1) != len(occ2) {
		panic("occupancy masks differ in length")
	}
	var union, intersect int
	for i := range occ1 {
		if occ1[i] || occ2[i] {
			union++
		}
		if occ1[i] && occ2[i] {
			intersect++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersect) / float64(union)
}

// ComputeAcc compares predicted signed distances to ground truth at the same
// query points. signAcc is the fraction of points where both lie strictly on
// the same side of iso, thresAcc the fraction whose values differ by at most
// thres and iou the IoU of the regions at or below iso.
func ComputeAcc(pred, gt []float64, thres, iso float64) (signAcc, thresAcc, iou float64) {
	if len(pred) != len(gt) {
		panic("predicted and ground truth values differ in length")
	}
	occPred := make([]bool, len(pred))
	occGT := make([]bool, len(gt))
	var sameSign, close int
	for i := range pred {
		if (pred[i]-iso)*(gt[i]-iso) > 0 {
			sameSign++
		}
		if math.Abs(pred[i]-gt[i]) <= thres {
			close++
		}
		occPred[i] = pred[i] <= iso
		occGT[i] = gt[i] <= iso
	}
	n := float64(len(pred))
	return float64(sameSign) / n, float64(close) / n, ComputeIoU(occPred, occGT)
}
