package pagination

import (
	"errors"
	"testing"
)

func TestURLTable_Seeded(t *testing.T) {
	table := NewURLTable("/v1/items?page=0")

	url, ok := table.Get(0)
	if !ok || url != "/v1/items?page=0" {
		t.Errorf("Get(0) = %q, %v", url, ok)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestURLTable_Lookup(t *testing.T) {
	table := NewURLTable("/first")

	if _, err := table.Lookup(1); !errors.Is(err, ErrPageURLUnknown) {
		t.Errorf("Lookup(1) error = %v, want ErrPageURLUnknown", err)
	}

	table.Set(1, "/second")
	url, err := table.Lookup(1)
	if err != nil {
		t.Fatalf("Lookup(1) error = %v", err)
	}
	if url != "/second" {
		t.Errorf("Lookup(1) = %q, want /second", url)
	}
}

func TestURLTable_Set(t *testing.T) {
	tests := []struct {
		name   string
		page   int
		url    string
		wantOK bool
	}{
		{name: "new page", page: 1, url: "/p1", wantOK: true},
		{name: "existing page is kept", page: 0, url: "/other", wantOK: false},
		{name: "empty url", page: 2, url: "", wantOK: false},
		{name: "negative page", page: -1, url: "/neg", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewURLTable("/p0")
			if got := table.Set(tt.page, tt.url); got != tt.wantOK {
				t.Errorf("Set(%d, %q) = %v, want %v", tt.page, tt.url, got, tt.wantOK)
			}
			if url, _ := table.Get(0); url != "/p0" {
				t.Errorf("page 0 url changed to %q", url)
			}
		})
	}
}
