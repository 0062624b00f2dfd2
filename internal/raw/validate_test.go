package raw

import (
	"strings"
	"testing"
)

func TestValidateAcceptsWellFormedBody(t *testing.T) {
	body := []byte(`{
		"event_timestamp": 1770000000000000,
		"user_id": "u-123",
		"event_name": "add_to_cart",
		"platform": "ios",
		"items": [{"item_id": "sku-1"}]
	}`)
	res := Validate(body)
	if !res.Valid {
		t.Fatalf("valid body rejected: %v", res.Problems)
	}
}

func TestValidateAcceptsNestedTextItems(t *testing.T) {
	body := []byte(`{
		"event_timestamp": 1,
		"user_id": "u",
		"event_name": "e",
		"platform": "web",
		"items": "[{item_id=sku-1}]"
	}`)
	if res := Validate(body); !res.Valid {
		t.Fatalf("nested-text items rejected: %v", res.Problems)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "not json",
			body: `{{{`,
			want: "not valid JSON",
		},
		{
			name: "not an object",
			body: `[1, 2, 3]`,
			want: "expected object",
		},
		{
			name: "missing event_timestamp",
			body: `{"user_id": "u", "event_name": "e", "platform": "web", "items": []}`,
			want: "missing field: event_timestamp",
		},
		{
			name: "string event_timestamp",
			body: `{"event_timestamp": "soon", "user_id": "u", "event_name": "e", "platform": "web", "items": []}`,
			want: "event_timestamp is string",
		},
		{
			name: "fractional event_timestamp",
			body: `{"event_timestamp": 1.5, "user_id": "u", "event_name": "e", "platform": "web", "items": []}`,
			want: "not an integer",
		},
		{
			name: "missing user_id",
			body: `{"event_timestamp": 1, "event_name": "e", "platform": "web", "items": []}`,
			want: "missing field: user_id",
		},
		{
			name: "numeric platform",
			body: `{"event_timestamp": 1, "user_id": "u", "event_name": "e", "platform": 7, "items": []}`,
			want: "platform is number",
		},
		{
			name: "object items",
			body: `{"event_timestamp": 1, "user_id": "u", "event_name": "e", "platform": "web", "items": {"a": 1}}`,
			want: "items is object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate([]byte(tt.body))
			if res.Valid {
				t.Fatal("invalid body accepted")
			}
			found := false
			for _, p := range res.Problems {
				if strings.Contains(p, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("problems %v do not mention %q", res.Problems, tt.want)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	res := Validate([]byte(`{"platform": "web"}`))
	if res.Valid {
		t.Fatal("body with multiple missing fields accepted")
	}
	if len(res.Problems) < 4 {
		t.Errorf("got %d problems, want all missing fields reported: %v", len(res.Problems), res.Problems)
	}
}
