package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"fintrack/internal/core"
)

func TestParseDeletePolicy(t *testing.T) {
	target := uuid.New()
	tests := []struct {
		name    string
		query   url.Values
		want    core.DeletePolicy
		wantErr error
	}{
		{
			name:  "cascade",
			query: url.Values{"mode": {"cascade"}},
			want:  core.DeletePolicy{Mode: core.Cascade},
		},
		{
			name:  "reassign with target",
			query: url.Values{"mode": {"Reassign"}, "target": {target.String()}},
			want:  core.DeletePolicy{Mode: core.Reassign, Target: target},
		},
		{
			name:    "missing mode",
			query:   url.Values{},
			wantErr: core.ErrInvalidPolicy,
		},
		{
			name:    "bad target",
			query:   url.Values{"mode": {"reassign"}, "target": {"nope"}},
			wantErr: errBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDeletePolicy(tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("policy = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("CET", 3600)

	got, err := parseDate("2024-03-15", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2024, 3, 15, 0, 0, 0, 0, loc); !got.Equal(want) {
		t.Errorf("date = %v, want %v", got, want)
	}

	if got, err := parseDate("  ", loc); err != nil || !got.IsZero() {
		t.Errorf("empty date = %v, %v; want zero, nil", got, err)
	}

	if _, err := parseDate("15/03/2024", loc); !errors.Is(err, core.ErrInvalidDate) {
		t.Errorf("err = %v, want ErrInvalidDate", err)
	}
}

func TestParseRange(t *testing.T) {
	from, to, err := parseRange(url.Values{"from": {"2024-01-01"}, "to": {"2024-02-01"}}, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if from.Month() != time.January || to.Month() != time.February {
		t.Errorf("range = %v..%v", from, to)
	}

	if _, _, err := parseRange(url.Values{"to": {"tomorrow"}}, time.UTC); !strings.HasPrefix(err.Error(), "to:") {
		t.Errorf("err = %v, want to: prefix", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", `{"name":"Wallet"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"name":"Wallet","extra":1}`, true},
		{"trailing data", `{"name":"a"}{"name":"b"}`, true},
		{"malformed", `{"name":`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))
			var dst body
			err := decodeJSON(httptest.NewRecorder(), r, &dst)
			if tt.wantErr {
				if !errors.Is(err, errBadRequest) {
					t.Errorf("err = %v, want errBadRequest", err)
				}
				return
			}
			if err != nil || dst.Name != "Wallet" {
				t.Errorf("decode = %+v, %v", dst, err)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	id := uuid.New()
	r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": id.String()})
	if got, err := pathID(r, "id"); err != nil || got != id {
		t.Errorf("pathID = %v, %v", got, err)
	}

	r = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "42"})
	if _, err := pathID(r, "id"); !errors.Is(err, errBadRequest) {
		t.Errorf("err = %v, want errBadRequest", err)
	}
}

func TestParseOptionalRate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"", "0", false},
		{"1.1", "1.1", false},
		{"0,95", "0.95", false},
		{"0", "", true},
		{"-2", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := parseOptionalRate(tt.input)
		if tt.wantErr {
			if !errors.Is(err, core.ErrInvalidRate) {
				t.Errorf("parseOptionalRate(%q) err = %v, want ErrInvalidRate", tt.input, err)
			}
			continue
		}
		if err != nil || got.String() != tt.want {
			t.Errorf("parseOptionalRate(%q) = %s, %v; want %s", tt.input, got, err, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Groceries  ", "Groceries"},
		{"Coffee\x00\x07", "Coffee"},
		{"line\nbreak", "line\nbreak"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
