package latticemodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOid(t *testing.T) {
	oid, err := NewOid("ABCDEF0123456789ABCDEF0123456789ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, Oid("abcdef0123456789abcdef0123456789abcdef01"), oid)

	zero, err := NewOid("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = NewOid("not-an-oid")
	assert.Error(t, err)
}

func TestNewBranchName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"feature-a", false},
		{"", true},
		{".hidden", true},
		{"-flag-like", true},
		{"has..dots", true},
		{"trailing/", true},
		{"trailing.lock", true},
		{"weird@{1}", true},
		{"has space", true},
	}
	for _, tc := range cases {
		_, err := NewBranchName(tc.name)
		if tc.wantErr {
			assert.Error(t, err, tc.name)
		} else {
			assert.NoError(t, err, tc.name)
		}
	}
}

func TestMetadataRecordCanonicalJSONDeterminism(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m1 := NewMetadataRecord("feature-a", Parent{Kind: ParentKindTrunk, Name: "main"}, Oid("abcdef0123456789abcdef0123456789abcdef01"), now)
	m2 := NewMetadataRecord("feature-a", Parent{Kind: ParentKindTrunk, Name: "main"}, Oid("abcdef0123456789abcdef0123456789abcdef01"), now)

	j1, err := m1.CanonicalJSON()
	require.NoError(t, err)
	j2, err := m2.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t, j1, j2, "identical field values must serialise identically")

	parsed, err := ParseMetadataRecord(j1)
	require.NoError(t, err)
	assert.Equal(t, m1.Branch.Name, parsed.Branch.Name)
	assert.Equal(t, m1.Parent, parsed.Parent)
}

func TestParseMetadataRecordRejectsUnknownFields(t *testing.T) {
	bad := []byte(`{"schema_version":1,"branch":{"name":"a"},"parent":{"kind":"trunk"},"base":{"oid":""},"freeze":{"state":"unfrozen"},"pr":{"state":"none"},"timestamps":{"created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"},"extra_field":true}`)
	_, err := ParseMetadataRecord(bad)
	assert.Error(t, err)
}

func TestParseMetadataRecordRejectsWrongSchemaVersion(t *testing.T) {
	bad := []byte(`{"schema_version":2,"branch":{"name":"a"},"parent":{"kind":"trunk"},"base":{"oid":""},"freeze":{"state":"unfrozen"},"pr":{"state":"none"},"timestamps":{"created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}}`)
	_, err := ParseMetadataRecord(bad)
	assert.Error(t, err)
}

func TestComputeFingerprintOrderIndependent(t *testing.T) {
	a := []RefOid{
		{Ref: "refs/heads/a", Oid: "aaaa"},
		{Ref: "refs/heads/b", Oid: "bbbb"},
	}
	b := []RefOid{
		{Ref: "refs/heads/b", Oid: "bbbb"},
		{Ref: "refs/heads/a", Oid: "aaaa"},
	}
	assert.Equal(t, ComputeFingerprint(a), ComputeFingerprint(b))

	c := []RefOid{
		{Ref: "refs/heads/a", Oid: "aaaa"},
		{Ref: "refs/heads/b", Oid: "cccc"},
	}
	assert.NotEqual(t, ComputeFingerprint(a), ComputeFingerprint(c))
}
