// Package help answers "ayuda <tema>" with a small, deterministic,
// concurrency-safe in-memory index of help topics.
//
//   - Topics come from a built-in Spanish set or a Markdown file whose
//     "## " headings name the topics.
//   - Matching is accent- and case-insensitive (see Fold).
//   - An exact topic name or keyword wins; otherwise topics are ranked by
//     Jaccard similarity between query tokens and topic tokens.
//   - The index is immutable after construction.
package help

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
)

// Topic is one help entry.
type Topic struct {
	Name     string
	Keywords []string
	Body     string
}

// Result is a ranked topic with its similarity score.
type Result struct {
	Topic Topic
	Score float64
}

// Option configures an Index.
type Option func(*config)

type config struct {
	minScore  float64
	stopwords map[string]struct{}
}

func defaultConfig() config {
	return config{
		minScore:  0.05,
		stopwords: toSet(defaultStopwords),
	}
}

// WithMinScore sets the lowest Jaccard score Lookup accepts.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s >= 0 && s <= 1 {
			c.minScore = s
		}
	}
}

// WithStopwords replaces the stop-word list.
func WithStopwords(words []string) Option {
	return func(c *config) {
		c.stopwords = toSet(words)
	}
}

type doc struct {
	topic  Topic
	names  map[string]struct{}
	tokens map[string]struct{}
}

// Index is a read-only topic index.
type Index struct {
	cfg  config
	docs []doc
}

// New builds an Index over topics. Topics without a name are skipped.
func New(topics []Topic, opts ...Option) *Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(topics))
	for _, t := range topics {
		name := Fold(t.Name)
		if name == "" {
			continue
		}
		names := map[string]struct{}{name: {}}
		for _, k := range t.Keywords {
			if k = Fold(k); k != "" {
				names[k] = struct{}{}
			}
		}
		toks := tokenize(t.Name+" "+strings.Join(t.Keywords, " ")+" "+t.Body, cfg.stopwords)
		docs = append(docs, doc{topic: t, names: names, tokens: toks})
	}
	return &Index{cfg: cfg, docs: docs}
}

// Topics returns the indexed topics in insertion order.
func (i *Index) Topics() []Topic {
	out := make([]Topic, len(i.docs))
	for n, d := range i.docs {
		out[n] = d.topic
	}
	return out
}

// Lookup returns the best topic for query: an exact name or keyword match,
// else the top-ranked topic scoring at least the minimum score.
func (i *Index) Lookup(query string) (Topic, bool) {
	q := Fold(query)
	if q == "" {
		return Topic{}, false
	}
	for _, d := range i.docs {
		if _, ok := d.names[q]; ok {
			return d.topic, true
		}
	}
	res := i.TopK(query, 1)
	if len(res) == 0 || res[0].Score < i.cfg.minScore {
		return Topic{}, false
	}
	return res[0].Topic, true
}

// TopK returns up to k topics ranked by Jaccard similarity. Ties keep
// insertion order.
func (i *Index) TopK(query string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	q := tokenize(query, i.cfg.stopwords)
	if len(q) == 0 {
		return nil
	}

	var out []Result
	for _, d := range i.docs {
		over := overlap(q, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(q) + len(d.tokens) - over)
		out = append(out, Result{Topic: d.topic, Score: float64(over) / union})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if k < len(out) {
		out = out[:k]
	}
	return out
}

// LoadMarkdown reads topics from a Markdown file. See ParseMarkdown.
func LoadMarkdown(path string) ([]Topic, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseMarkdown(bytes.NewReader(b))
}

// ParseMarkdown splits r on "## " headings. The heading is the topic name,
// an optional first line "keywords: a, b" lists keywords, and the rest is the
// body. Text before the first heading is ignored.
func ParseMarkdown(r io.Reader) ([]Topic, error) {
	var (
		topics []Topic
		cur    *Topic
		body   []string
	)
	flush := func() {
		if cur != nil {
			cur.Body = strings.TrimSpace(strings.Join(body, "\n"))
			topics = append(topics, *cur)
		}
		body = body[:0]
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "## ") {
			flush()
			cur = &Topic{Name: strings.TrimSpace(strings.TrimPrefix(line, "## "))}
			continue
		}
		if cur == nil {
			continue
		}
		if len(body) == 0 && len(cur.Keywords) == 0 {
			if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "keywords:"); ok {
				for _, k := range strings.Split(rest, ",") {
					if k = strings.TrimSpace(k); k != "" {
						cur.Keywords = append(cur.Keywords, k)
					}
				}
				continue
			}
		}
		body = append(body, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return topics, nil
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(Fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = Fold(w); w != "" {
			m[w] = struct{}{}
		}
	}
	return m
}

var defaultStopwords = []string{
	"a", "al", "como", "con", "de", "del", "el", "en", "es", "la", "las", "lo", "los",
	"mi", "no", "o", "para", "por", "que", "se", "si", "su", "tu", "un", "una", "y", "yo",
}
