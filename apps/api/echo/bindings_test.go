package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/tmalose/peerly/core"
)

func TestOrderingBind(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		allowed []string
		want    []core.DBOrdering
	}{
		{name: "no param", query: ""},
		{name: "empty param", query: "ordering="},
		{name: "single field", query: "ordering=name",
			want: []core.DBOrdering{{Field: "name", Ascending: true}}},
		{name: "descending and multiple", query: "ordering=-created_at,name",
			want: []core.DBOrdering{{Field: "created_at", Ascending: false}, {Field: "name", Ascending: true}}},
		{name: "unlisted field dropped", query: "ordering=password_hash,name", allowed: []string{"name", "email"},
			want: []core.DBOrdering{{Field: "name", Ascending: true}}},
		{name: "all fields unlisted", query: "ordering=password_hash,roles", allowed: []string{"name"}},
		{name: "no whitelist keeps everything", query: "ordering=anything",
			want: []core.DBOrdering{{Field: "anything", Ascending: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			ctx := e.NewContext(req, httptest.NewRecorder())

			ord := new(Ordering)
			ord.Bind(ctx, tt.allowed...)

			if len(ord.Orderings) != len(tt.want) {
				t.Fatalf("failed! %d orderings; want %d", len(ord.Orderings), len(tt.want))
			}
			for i, want := range tt.want {
				if ord.Orderings[i] != want {
					t.Errorf("ordering[%d] = %+v, want %+v", i, ord.Orderings[i], want)
				}
			}
		})
	}
}
