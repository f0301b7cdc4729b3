package guard

import (
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Report accumulates named guard verdicts into a JSON document. Engines
// attach it to their analysis results; the document shape is
// {"guards":{name:verdict,...},"summary":{...}}.
type Report struct {
	mu     sync.Mutex
	doc    string
	counts map[Verdict]int
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{
		doc:    "{}",
		counts: make(map[Verdict]int),
	}
}

// Record adds one verdict under the given guard name. Recording the same
// name twice overwrites the earlier verdict and keeps the counts coherent
// with the document.
func (r *Report) Record(name string, v Verdict) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := gjsonVerdict(r.doc, name)
	doc, err := sjson.Set(r.doc, "guards."+escapeName(name), v.String())
	if err != nil {
		return err
	}
	r.doc = doc
	if prev != nil {
		r.counts[*prev]--
	}
	r.counts[v]++
	return nil
}

// Count returns how many recorded guards carry the given verdict.
func (r *Report) Count(v Verdict) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[v]
}

// JSON returns the report document with an up-to-date summary.
func (r *Report) JSON() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := r.doc
	var err error
	for _, v := range []Verdict{Satisfied, NotSatisfied, Undetermined} {
		doc, err = sjson.Set(doc, "summary."+v.String(), r.counts[v])
		if err != nil {
			return "", err
		}
	}
	return doc, nil
}

// escapeName escapes path-syntax characters so an arbitrary guard name maps
// to exactly one literal key under "guards", never a nested path or a query.
func escapeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// gjsonVerdict reads back an already-recorded verdict, or nil.
func gjsonVerdict(doc, name string) *Verdict {
	res := gjson.Get(doc, "guards."+escapeName(name))
	if !res.Exists() {
		return nil
	}
	v := Undetermined
	switch res.Str {
	case Satisfied.String():
		v = Satisfied
	case NotSatisfied.String():
		v = NotSatisfied
	}
	return &v
}
