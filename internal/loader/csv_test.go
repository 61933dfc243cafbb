package loader

import (
	"reflect"
	"testing"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want [][]string
	}{
		{
			"simple",
			"a,b,c\n1,2,3",
			[][]string{{"a", "b", "c"}, {"1", "2", "3"}},
		},
		{
			"quoted field with comma",
			"name,notes\npipe 4,\"crack, severe\"",
			[][]string{{"name", "notes"}, {"pipe 4", "crack, severe"}},
		},
		{
			"doubled quote escape",
			"\"a,b\"\"c\"",
			[][]string{{"a,b\"c"}},
		},
		{
			"crlf line endings",
			"a,b\r\n1,2\r\n",
			[][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			"newline inside quoted field",
			"a,b\n\"line one\nline two\",x",
			[][]string{{"a", "b"}, {"line one\nline two", "x"}},
		},
		{
			"leading and interior blank rows skipped",
			"\n,,\na,b\n\n1,2",
			[][]string{{"a", "b"}, {"1", "2"}},
		},
		{
			"trailing empty field kept",
			"a,b\n1,",
			[][]string{{"a", "b"}, {"1", ""}},
		},
		{
			"empty input",
			"",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCSV(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCSV(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
