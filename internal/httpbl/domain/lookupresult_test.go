package domain

import (
	"encoding/json"
	"errors"
	"net/netip"
	"slices"
	"testing"

	jsoniter "github.com/json-iterator/go"
)

func TestParseReply(t *testing.T) {
	cases := []struct {
		name    string
		addr    string
		want    Reply
		wantErr error
	}{
		{name: "listing", addr: "127.5.20.6", want: Reply{Activity: 5, Score: 20, Type: 6}},
		{name: "search engine", addr: "127.0.5.1", want: Reply{Activity: 0, Score: 5, Type: 1}},
		{name: "mapped ipv4", addr: "::ffff:127.1.2.3", want: Reply{Activity: 1, Score: 2, Type: 3}},
		{name: "not loopback", addr: "10.5.20.6", wantErr: ErrNotListing},
		{name: "ipv6", addr: "2001:db8::1", wantErr: ErrNotIPv4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseReply(netip.MustParseAddr(tc.addr))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ParseReply(%s) error = %v, want %v", tc.addr, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReply(%s) unexpected error: %v", tc.addr, err)
			}
			if got != tc.want {
				t.Errorf("ParseReply(%s) = %+v, want %+v", tc.addr, got, tc.want)
			}
		})
	}

	if _, err := ParseReply(netip.Addr{}); !errors.Is(err, ErrNotIPv4) {
		t.Errorf("ParseReply(zero) error = %v, want ErrNotIPv4", err)
	}
}

func TestNewNotBlacklisted(t *testing.T) {
	r := NewNotBlacklisted("1.2.3.4")
	if r.IP != "1.2.3.4" {
		t.Errorf("IP = %q", r.IP)
	}
	if !slices.Equal(r.Classifications, []Classification{NotBlacklisted}) {
		t.Errorf("Classifications = %v", r.Classifications)
	}
	if r.ThreatScore != 0 || r.TypeBitmask != 0 {
		t.Errorf("score/mask = %d/%d, want 0/0", r.ThreatScore, r.TypeBitmask)
	}
	if r.DaysSinceActivity != nil || r.SearchEngineCode != nil || r.SearchEngineName != "" {
		t.Errorf("optional fields should be absent: %+v", r)
	}
	if r.IsListed() || r.IsSearchEngine() {
		t.Errorf("IsListed/IsSearchEngine should be false")
	}
}

func TestNewLookupResult_Threat(t *testing.T) {
	r := NewLookupResult("1.2.3.4", Reply{Activity: 5, Score: 20, Type: 6})

	if r.DaysSinceActivity == nil || *r.DaysSinceActivity != 5 {
		t.Fatalf("DaysSinceActivity = %v, want 5", r.DaysSinceActivity)
	}
	if r.ThreatScore != 20 {
		t.Errorf("ThreatScore = %d, want 20", r.ThreatScore)
	}
	if r.TypeBitmask != 6 {
		t.Errorf("TypeBitmask = %d, want 6", r.TypeBitmask)
	}
	if !r.Has(Suspicious) || !r.Has(Harvester) {
		t.Errorf("Classifications = %v, want Suspicious and Harvester", r.Classifications)
	}
	if r.Has(SearchEngine) || r.Has(NotBlacklisted) {
		t.Errorf("unexpected labels in %v", r.Classifications)
	}
	if r.SearchEngineCode != nil || r.SearchEngineName != "" {
		t.Errorf("search engine fields should be absent")
	}
	if !r.IsListed() {
		t.Errorf("IsListed() = false, want true")
	}
}

func TestNewLookupResult_EmptyMask(t *testing.T) {
	r := NewLookupResult("1.2.3.4", Reply{Activity: 1, Score: 50, Type: 0})

	if len(r.Classifications) != 0 {
		t.Errorf("Classifications = %v, want empty", r.Classifications)
	}
	if r.Classifications == nil {
		t.Errorf("Classifications should be an empty list, not nil")
	}
	if !r.IsListed() {
		t.Errorf("a listing with no type bits is still listed")
	}
}

func TestNewLookupResult_SearchEngine(t *testing.T) {
	r := NewLookupResult("66.249.66.1", Reply{Activity: 0, Score: 5, Type: 1})

	if !slices.Equal(r.Classifications, []Classification{SearchEngine}) {
		t.Fatalf("Classifications = %v, want [SearchEngine]", r.Classifications)
	}
	if r.ThreatScore != 0 {
		t.Errorf("ThreatScore = %d, want 0", r.ThreatScore)
	}
	if r.DaysSinceActivity != nil {
		t.Errorf("DaysSinceActivity = %d, want nil", *r.DaysSinceActivity)
	}
	if r.SearchEngineCode == nil || *r.SearchEngineCode != 5 {
		t.Fatalf("SearchEngineCode = %v, want 5", r.SearchEngineCode)
	}
	if r.SearchEngineName != "Google" {
		t.Errorf("SearchEngineName = %q, want Google", r.SearchEngineName)
	}
	if !r.IsSearchEngine() {
		t.Errorf("IsSearchEngine() = false")
	}
}

func TestNewLookupResult_SearchEngineTakesPrecedence(t *testing.T) {
	r := NewLookupResult("1.2.3.4", Reply{Activity: 3, Score: 12, Type: 7})

	if !slices.Equal(r.Classifications, []Classification{SearchEngine}) {
		t.Fatalf("Classifications = %v, want [SearchEngine]", r.Classifications)
	}
	if r.ThreatScore != 0 || r.DaysSinceActivity != nil {
		t.Errorf("search engine invariant violated: %+v", r)
	}
	if r.TypeBitmask != 7 {
		t.Errorf("TypeBitmask = %d, want raw 7", r.TypeBitmask)
	}
	if r.SearchEngineName != "Miscellaneous" {
		t.Errorf("SearchEngineName = %q", r.SearchEngineName)
	}
}

func TestNewLookupResult_UnknownSearchEngine(t *testing.T) {
	r := NewLookupResult("1.2.3.4", Reply{Activity: 3, Score: 99, Type: 1})
	if r.SearchEngineName != UnknownSearchEngine {
		t.Errorf("SearchEngineName = %q, want Unknown", r.SearchEngineName)
	}
}

func TestLookupResult_Labels(t *testing.T) {
	r := NewLookupResult("1.2.3.4", Reply{Activity: 1, Score: 1, Type: 2})
	if got := r.Labels(); !slices.Equal(got, []string{"Suspicious"}) {
		t.Errorf("Labels() = %v", got)
	}
}

func TestLookupResult_JSONClassificationsAreLabels(t *testing.T) {
	results := []LookupResult{
		NewNotBlacklisted("1.2.3.4"),
		NewLookupResult("5.6.7.8", Reply{Activity: 10, Score: 50, Type: 6}),
	}
	want := `[{"ip":"1.2.3.4","threat_score":0,"type_bitmask":0,"classifications":["Not Blacklisted"]},` +
		`{"ip":"5.6.7.8","days_since_activity":10,"threat_score":50,"type_bitmask":6,"classifications":["Suspicious","Harvester","Comment Spammer"]}]`

	encoders := map[string]func(any) ([]byte, error){
		"encoding/json": json.Marshal,
		"jsoniter":      jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
	}
	for name, marshal := range encoders {
		got, err := marshal(results)
		if err != nil {
			t.Fatalf("%s: Marshal error: %v", name, err)
		}
		if string(got) != want {
			t.Errorf("%s: Marshal = %s, want %s", name, got, want)
		}
	}
}
