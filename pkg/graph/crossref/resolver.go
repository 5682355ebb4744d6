package crossref

import (
	"sort"

	"github.com/athapong/aio-osint/pkg/graph/metrics"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// Kind is the attribute family an observed value belongs to
type Kind string

const (
	KindPhone    Kind = "phone"
	KindEmail    Kind = "email"
	KindAddress  Kind = "address"
	KindRelative Kind = "relative"
)

// Observation is one raw value reported by one source
type Observation struct {
	Kind   Kind   `json:"kind"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Record is the cross-referenced view of one normalized value
type Record struct {
	Kind            Kind     `json:"kind"`
	NormalizedValue string   `json:"normalized_value"`
	Display         string   `json:"display"`
	SourceCount     int      `json:"source_count"`
	Verified        bool     `json:"verified"`
	Sources         []string `json:"sources"`
}

// Key identifies a record across kinds
func (r Record) Key() string {
	return RecordKey(r.Kind, r.NormalizedValue)
}

// RecordKey builds the lookup key for a kind and normalized value
func RecordKey(kind Kind, normalized string) string {
	return string(kind) + ":" + normalized
}

// Resolver deduplicates observed values across sources and votes on them
type Resolver struct {
	subject string
	logger  *logrus.Logger
}

// Option configures a Resolver
type Option func(*Resolver)

// WithSubject excludes the investigation subject's own name from relative records
func WithSubject(name string) Option {
	return func(r *Resolver) {
		r.subject = name
	}
}

// WithLogger sets the logger used for filtered values
func WithLogger(logger *logrus.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a cross-reference resolver
func NewResolver(opts ...Option) *Resolver {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	r := &Resolver{logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalize applies the kind's normalization rule. Invalid values report false.
func Normalize(kind Kind, raw string) (normalized string, display string, ok bool) {
	switch kind {
	case KindPhone:
		digits, ok := NormalizePhone(raw)
		return digits, FormatPhone(digits), ok
	case KindEmail:
		email, ok := NormalizeEmail(raw)
		return email, email, ok
	case KindAddress:
		address, ok := NormalizeAddress(raw)
		return address, address, ok
	case KindRelative:
		name, key, ok := NormalizeName(raw)
		return key, name, ok
	default:
		return "", "", false
	}
}

// Resolve normalizes every observation, drops invalid values and counts the
// distinct sources behind each surviving value. Records keep the order in
// which their value was first observed.
func (r *Resolver) Resolve(observations []Observation) []Record {
	_, subjectKey, hasSubject := NormalizeName(r.subject)

	records := make([]Record, 0)
	index := make(map[string]int)
	sources := make(map[string]mapset.Set[string])

	for _, obs := range observations {
		normalized, display, ok := Normalize(obs.Kind, obs.Value)
		if !ok {
			r.logger.WithFields(logrus.Fields{
				"kind":   obs.Kind,
				"source": obs.Source,
			}).Debug("Filtered invalid cross-reference value")
			metrics.CrossReferenceValues.WithLabelValues(string(obs.Kind), "rejected").Inc()
			continue
		}
		if obs.Kind == KindRelative && hasSubject && normalized == subjectKey {
			metrics.CrossReferenceValues.WithLabelValues(string(obs.Kind), "subject").Inc()
			continue
		}
		metrics.CrossReferenceValues.WithLabelValues(string(obs.Kind), "accepted").Inc()

		key := RecordKey(obs.Kind, normalized)
		if _, exists := index[key]; !exists {
			index[key] = len(records)
			records = append(records, Record{
				Kind:            obs.Kind,
				NormalizedValue: normalized,
				Display:         display,
			})
			sources[key] = mapset.NewThreadUnsafeSet[string]()
		}
		if obs.Source != "" {
			sources[key].Add(obs.Source)
		}
	}

	for i := range records {
		set := sources[records[i].Key()]
		list := set.ToSlice()
		sort.Strings(list)
		records[i].Sources = list
		records[i].SourceCount = set.Cardinality()
		records[i].Verified = records[i].SourceCount > 1
	}

	return records
}

// Index maps records by Key for lookups
func Index(records []Record) map[string]Record {
	out := make(map[string]Record, len(records))
	for _, rec := range records {
		out[rec.Key()] = rec
	}
	return out
}

// RelativeNames deduplicates names case-insensitively, keeping the first
// spelling, and drops the subject's own name.
func RelativeNames(names []string, subject string) []string {
	_, subjectKey, hasSubject := NormalizeName(subject)
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(names))

	for _, raw := range names {
		name, key, ok := NormalizeName(raw)
		if !ok || (hasSubject && key == subjectKey) {
			continue
		}
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)
		out = append(out, name)
	}
	return out
}
