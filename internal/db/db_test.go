package db

import (
	"strings"
	"testing"
)

func TestTableQualifiesSchema(t *testing.T) {
	tests := []struct {
		schema string
		want   string
	}{
		{"", `"public"."crm_clients"`},
		{"t_p78642605_single_page_website_", `"t_p78642605_single_page_website_"."crm_clients"`},
		{`odd"name`, `"odd""name"."crm_clients"`},
	}
	for _, tt := range tests {
		s := NewStore(nil, tt.schema, nil)
		if got := s.table("crm_clients"); got != tt.want {
			t.Fatalf("table() with schema %q = %s; want %s", tt.schema, got, tt.want)
		}
	}
}

func TestInitDBRequiresURL(t *testing.T) {
	if _, err := InitDB(t.Context(), "", "public", nil); err == nil {
		t.Fatal("expected error for empty DATABASE_URL")
	}
}

func TestRecentMessagesQueryIsBoundedPerClient(t *testing.T) {
	q := NewStore(nil, "crm", nil).recentMessagesQuery()
	for _, want := range []string{
		`FROM "crm"."crm_messages" m`,
		"ROW_NUMBER() OVER (PARTITION BY m.client_id",
		"WHERE rn <= $1",
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("query misses %q:\n%s", want, q)
		}
	}
}

func TestUnknownFolderIsRejectedBeforeQuery(t *testing.T) {
	s := NewStore(nil, "", nil)
	if _, err := s.SetClientStatus(t.Context(), 42, "archive"); err == nil {
		t.Fatal("SetClientStatus accepted an unknown folder")
	}
	if _, err := s.ListClientsByStatus(t.Context(), ""); err == nil {
		t.Fatal("ListClientsByStatus accepted an empty folder")
	}
}
