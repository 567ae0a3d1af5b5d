package csvformat

import (
	"slices"
	"testing"
)

func TestFormat_Names(t *testing.T) {
	f := New()
	if got := f.Name(); got != "csv" {
		t.Errorf("Name() = %q, want %q", got, "csv")
	}
	if got := f.Extension(); got != "csv" {
		t.Errorf("Extension() = %q, want %q", got, "csv")
	}
}

func TestFormat_ParseLine(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`a,1.0,MIT`, []string{"a", "1.0", "MIT"}},
		{`b,2.0,Apache-2.0`, []string{"b", "2.0", "Apache-2.0"}},
		{`"quoted, name",1.0,"MIT OR Apache-2.0"`, []string{"quoted, name", "1.0", "MIT OR Apache-2.0"}},
		{`single`, []string{"single"}},
		{`a,,c`, []string{"a", "", "c"}},
		{`"with ""escaped"" quotes",x`, []string{`with "escaped" quotes`, "x"}},
	}

	f := New()
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rec, err := f.ParseLine([]byte(tt.line))
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if !slices.Equal(rec.Columns, tt.want) {
				t.Errorf("Columns = %q, want %q", rec.Columns, tt.want)
			}
			if rec.Value != nil {
				t.Errorf("Value = %v, want nil", rec.Value)
			}
		})
	}
}

func TestFormat_ParseLine_Malformed(t *testing.T) {
	tests := []string{
		`"unterminated,1.0,MIT`,
		`a"b,1.0`,
		``,
	}

	f := New()
	for _, line := range tests {
		if _, err := f.ParseLine([]byte(line)); err == nil {
			t.Errorf("ParseLine(%q) expected error", line)
		}
	}
}

func TestWithComma(t *testing.T) {
	f := New(WithComma('\t'))
	rec, err := f.ParseLine([]byte("a\t1.0\tMIT"))
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if want := []string{"a", "1.0", "MIT"}; !slices.Equal(rec.Columns, want) {
		t.Errorf("Columns = %q, want %q", rec.Columns, want)
	}
}
