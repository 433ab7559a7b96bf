package model

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"
)

// Accuracy is the share of positions where yPred equals yTrue.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// ClassMetrics holds one row of a classification report.
type ClassMetrics struct {
	Label     int     `json:"label"`
	Name      string  `json:"name"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is a per-class precision/recall/F1 summary.
type Report struct {
	Classes    []ClassMetrics `json:"classes"`
	Accuracy   float64        `json:"accuracy"`
	MacroF1    float64        `json:"macro_f1"`
	WeightedF1 float64        `json:"weighted_f1"`
	Support    int            `json:"support"`
}

// ClassificationReport computes one-vs-rest metrics for every label that
// appears in yTrue or yPred. names maps labels to display names and may be nil.
func ClassificationReport(yTrue, yPred []int, names func(int) string) Report {
	labels := uniqueLabels(append(append([]int(nil), yTrue...), yPred...))
	tp := map[int]int{}
	fp := map[int]int{}
	fn := map[int]int{}
	support := map[int]int{}
	for i := range yTrue {
		support[yTrue[i]]++
		if yTrue[i] == yPred[i] {
			tp[yTrue[i]]++
		} else {
			fp[yPred[i]]++
			fn[yTrue[i]]++
		}
	}

	r := Report{Accuracy: Accuracy(yTrue, yPred), Support: len(yTrue)}
	for _, lab := range labels {
		m := ClassMetrics{Label: lab, Name: fmt.Sprint(lab), Support: support[lab]}
		if names != nil {
			m.Name = names(lab)
		}
		if d := tp[lab] + fp[lab]; d > 0 {
			m.Precision = float64(tp[lab]) / float64(d)
		}
		if d := tp[lab] + fn[lab]; d > 0 {
			m.Recall = float64(tp[lab]) / float64(d)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes = append(r.Classes, m)
		r.MacroF1 += m.F1
		r.WeightedF1 += m.F1 * float64(m.Support)
	}
	if len(labels) > 0 {
		r.MacroF1 /= float64(len(labels))
	}
	if r.Support > 0 {
		r.WeightedF1 /= float64(r.Support)
	}
	return r
}

// WeightedF1 is the support-weighted mean of per-class F1.
func WeightedF1(yTrue, yPred []int) float64 {
	return ClassificationReport(yTrue, yPred, nil).WeightedF1
}

// LogLoss is the mean multiclass cross-entropy of proba against yTrue.
// Columns of proba follow classes; probabilities are clipped to
// [1e-12, 1-1e-12] so a confident miss costs a finite amount.
func LogLoss(yTrue []int, proba [][]float64, classes []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	col := make(map[int]int, len(classes))
	for i, c := range classes {
		col[c] = i
	}
	s := 0.0
	for i, y := range yTrue {
		p := 0.0
		if k, ok := col[y]; ok {
			p = proba[i][k]
		}
		p = math.Min(math.Max(p, 1e-12), 1-1e-12)
		s -= math.Log(p)
	}
	return s / float64(len(yTrue))
}

// Confusion counts (true, predicted) label pairs. Counts is row-major:
// row i is the true label Labels[i], column j the predicted label Labels[j].
type Confusion struct {
	Labels []int `json:"labels"`
	Counts []int `json:"counts"`
}

// ConfusionMatrix tallies yTrue against yPred over the sorted union of
// their labels.
func ConfusionMatrix(yTrue, yPred []int) *Confusion {
	labels := uniqueLabels(append(append([]int(nil), yTrue...), yPred...))
	pos := make(map[int]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	c := &Confusion{Labels: labels, Counts: make([]int, len(labels)*len(labels))}
	for i := range yTrue {
		c.Counts[pos[yTrue[i]]*len(labels)+pos[yPred[i]]]++
	}
	return c
}

// At returns the count for true label index i and predicted label index j.
func (c *Confusion) At(i, j int) int { return c.Counts[i*len(c.Labels)+j] }

// WriteTo renders the matrix with rows as true labels. names maps labels to
// display names and may be nil.
func (c *Confusion) WriteTo(w io.Writer, names func(int) string) (int64, error) {
	if names == nil {
		names = func(l int) string { return fmt.Sprint(l) }
	}
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 0, 1, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "true \\ pred\t")
	for j := range c.Labels {
		fmt.Fprintf(tw, "%d\t", j)
	}
	fmt.Fprintln(tw)
	for i, l := range c.Labels {
		fmt.Fprintf(tw, "%d %s\t", i, names(l))
		for j := range c.Labels {
			fmt.Fprintf(tw, "%d\t", c.At(i, j))
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, cw.err
}

// WriteTo renders the report as an aligned table.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "class\tprecision\trecall\tf1\tsupport\t")
	rows := append([]ClassMetrics(nil), r.Classes...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	for _, m := range rows {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", m.Name, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(tw, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy, r.Support)
	fmt.Fprintf(tw, "macro avg\t\t\t%.2f\t%d\t\n", r.MacroF1, r.Support)
	fmt.Fprintf(tw, "weighted avg\t\t\t%.2f\t%d\t\n", r.WeightedF1, r.Support)
	if err := tw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, cw.err
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
