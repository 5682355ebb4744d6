package crossref

import (
	"encoding/json"
	"testing"

	"github.com/athapong/aio-osint/pkg/graph"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"(555) 234-5678", "5552345678", true},
		{"+1 555.234.5678", "5552345678", true},
		{"555-234-567", "", false},
		{"123-456-7890", "", false},
		{"(555) 134-5678", "", false},
		{"555-555-5555", "", false},
		{"000-000-0000", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizePhone(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "(555) 234-5678", FormatPhone("5552345678"))
	assert.Equal(t, "12345", FormatPhone("12345"))
}

func TestNormalizeEmail(t *testing.T) {
	got, ok := NormalizeEmail("  Jane.Doe@Example.COM ")
	assert.True(t, ok)
	assert.Equal(t, "jane.doe@example.com", got)

	for _, bad := range []string{"", "jane", "@example.com", "jane@", "a@b@c", "jane doe@example.com"} {
		_, ok := NormalizeEmail(bad)
		assert.False(t, ok, bad)
	}
}

func TestNormalizeAddressAndName(t *testing.T) {
	got, ok := NormalizeAddress("  12  Oak St\n Springfield ")
	assert.True(t, ok)
	assert.Equal(t, "12 oak st springfield", got)

	_, ok = NormalizeAddress("   ")
	assert.False(t, ok)

	name, key, ok := NormalizeName(" John   Doe ")
	assert.True(t, ok)
	assert.Equal(t, "John Doe", name)
	assert.Equal(t, "john doe", key)
}

func TestResolveCountsDistinctSources(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	r := NewResolver(WithSubject("Jane Doe"), WithLogger(logger))

	records := r.Resolve([]Observation{
		{Kind: KindPhone, Value: "(555) 234-5678", Source: "Phone"},
		{Kind: KindPhone, Value: "555.234.5678", Source: "PeopleSearch"},
		{Kind: KindPhone, Value: "5552345678", Source: "Phone"},
		{Kind: KindPhone, Value: "123-456-7890", Source: "Phone"},
		{Kind: KindEmail, Value: "JANE@example.com", Source: "Holehe"},
		{Kind: KindRelative, Value: "jane doe", Source: "PeopleSearch"},
		{Kind: KindRelative, Value: "John Doe", Source: "PeopleSearch"},
	})

	require.Len(t, records, 3)

	phone := records[0]
	assert.Equal(t, KindPhone, phone.Kind)
	assert.Equal(t, "5552345678", phone.NormalizedValue)
	assert.Equal(t, "(555) 234-5678", phone.Display)
	assert.Equal(t, 2, phone.SourceCount)
	assert.True(t, phone.Verified)
	assert.Equal(t, []string{"PeopleSearch", "Phone"}, phone.Sources)

	email := records[1]
	assert.Equal(t, "jane@example.com", email.NormalizedValue)
	assert.Equal(t, 1, email.SourceCount)
	assert.False(t, email.Verified)

	relative := records[2]
	assert.Equal(t, "John Doe", relative.Display, "the subject's own name is dropped")

	index := Index(records)
	assert.Contains(t, index, RecordKey(KindEmail, "jane@example.com"))
}

func TestRelativeNames(t *testing.T) {
	names := RelativeNames([]string{"John Doe", "john  doe", "", "Jane Doe", "Mary Smith"}, "jane doe")
	assert.Equal(t, []string{"John Doe", "Mary Smith"}, names)
}

func TestExtract(t *testing.T) {
	findings := []graph.Finding{
		{
			ID:        "f1",
			AgentType: graph.AgentPeopleSearch,
			RawData: json.RawMessage(`{
				"source": "whitepages",
				"phones": ["555-234-5678", {"number": "555-876-5432"}],
				"addresses": [{"address": "12 Oak St"}],
				"relatives": [{"name": "John Doe"}]
			}`),
		},
		{ID: "f2", AgentType: graph.AgentType("phone_lookup"), RawData: json.RawMessage(`{"phone": "5552345678"}`)},
		{ID: "f3", AgentType: graph.AgentWeb, RawData: json.RawMessage(`not json`)},
	}

	obs := Extract(findings)
	assert.Contains(t, obs, Observation{Kind: KindPhone, Value: "555-234-5678", Source: "whitepages"})
	assert.Contains(t, obs, Observation{Kind: KindPhone, Value: "555-876-5432", Source: "whitepages"})
	assert.Contains(t, obs, Observation{Kind: KindAddress, Value: "12 Oak St", Source: "whitepages"})
	assert.Contains(t, obs, Observation{Kind: KindRelative, Value: "John Doe", Source: "whitepages"})
	assert.Contains(t, obs, Observation{Kind: KindPhone, Value: "5552345678", Source: "Phone"})
	assert.Len(t, obs, 5)
}
