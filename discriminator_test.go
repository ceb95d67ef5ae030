package lambdafn

import (
	"testing"
)

func mustView(t *testing.T, raw string) View {
	t.Helper()
	view, err := JSONInspector().Inspect([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return view
}

func TestHasFields(t *testing.T) {
	view := mustView(t, `{"Records": [{"messageId": "1", "body": "{}"}]}`)

	t.Run("matches when all fields present", func(t *testing.T) {
		if !HasFields("Records.0.messageId", "Records.0.body").Match(view) {
			t.Error("expected match")
		}
	})

	t.Run("fails when any field missing", func(t *testing.T) {
		if HasFields("Records.0.messageId", "Records.0.Sns").Match(view) {
			t.Error("expected no match")
		}
	})

	t.Run("matches with no fields (vacuous truth)", func(t *testing.T) {
		if !HasFields().Match(view) {
			t.Error("expected match for empty field list")
		}
	})
}

func TestFieldEquals(t *testing.T) {
	view := mustView(t, `{"Records": [{"eventSource": "aws:sqs", "count": 3}]}`)

	tests := map[string]struct {
		path  string
		value string
		want  bool
	}{
		"exact string":    {"Records.0.eventSource", "aws:sqs", true},
		"wrong value":     {"Records.0.eventSource", "aws:sns", false},
		"missing field":   {"Records.0.EventSource", "aws:sqs", false},
		"non-string type": {"Records.0.count", "3", false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := FieldEquals(tt.path, tt.value).Match(view); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldHasPrefix(t *testing.T) {
	view := mustView(t, `{"Records": [{"eventSourceARN": "arn:aws:sqs:us-east-1:1:q"}]}`)

	if !FieldHasPrefix("Records.0.eventSourceARN", "arn:aws:sqs:").Match(view) {
		t.Error("expected match")
	}
	if FieldHasPrefix("Records.0.eventSourceARN", "arn:aws:sns:").Match(view) {
		t.Error("expected no match")
	}
	if FieldHasPrefix("missing", "").Match(view) {
		t.Error("expected no match on missing field")
	}
}

func TestCombinators(t *testing.T) {
	view := mustView(t, `{"a": "1", "b": "2"}`)
	yes := HasFields("a")
	no := HasFields("z")

	tests := map[string]struct {
		d    Discriminator
		want bool
	}{
		"and all match":     {And(yes, yes), true},
		"and one fails":     {And(yes, no), false},
		"and empty":         {And(), true},
		"or one matches":    {Or(no, yes), true},
		"or none match":     {Or(no, no), false},
		"or empty":          {Or(), false},
		"not inverts match": {Not(yes), false},
		"not inverts miss":  {Not(no), true},
		"nested":            {Or(And(yes, no), Not(no)), true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tt.d.Match(view); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}
