package vars

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	body := `{
		"id": 42,
		"price": 9.5,
		"name": "ann",
		"active": false,
		"owner": {"email": "a@b.c", "roles": ["admin"]},
		"items": [{"sku": "x1"}, {"sku": "x2"}],
		"nothing": null,
		"dotted.key": "d"
	}`
	got := Extract(body, map[string]string{
		"id":      "id",
		"price":   "price",
		"name":    "name",
		"active":  "active",
		"email":   "owner.email",
		"owner":   "owner",
		"sku":     "items.1.sku",
		"roles":   "owner.roles",
		"nothing": "nothing",
		"missing": "owner.phone",
		"empty":   " ",
	})

	assert.Equal(t, map[string]any{
		"id":     json.Number("42"),
		"price":  json.Number("9.5"),
		"name":   "ann",
		"active": false,
		"email":  "a@b.c",
		"owner":  `{"email":"a@b.c","roles":["admin"]}`,
		"sku":    "x2",
		"roles":  `["admin"]`,
	}, got)
}

func TestExtract_InvalidBody(t *testing.T) {
	assert.Empty(t, Extract("<html/>", map[string]string{"id": "id"}))
	assert.Empty(t, Extract("", map[string]string{"id": "id"}))
}

func TestExtract_LiteralSpecialCharacters(t *testing.T) {
	body := `{"a*": 1, "b?": 2, "c|d": 3, "#": 4}`
	got := Extract(body, map[string]string{"a": "a*", "b": "b?", "c": "c|d", "n": "#"})
	assert.Equal(t, map[string]any{
		"a": json.Number("1"),
		"b": json.Number("2"),
		"c": json.Number("3"),
		"n": json.Number("4"),
	}, got)
}
