package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/iota-import/modules/imports/domain/coercion"
)

func TestDefault_LoadsEmbeddedSchemas(t *testing.T) {
	r := Default()
	require.Equal(t, []EntityType{"customer", "contact", "job", "invoice", "estimate"}, r.EntityTypes())

	contact, err := r.Get("contact")
	require.NoError(t, err)
	require.True(t, contact.DedupeEligible)
	require.Equal(t, []string{"email", "phone"}, contact.DedupeKeys)
	require.Equal(t, "contacts", contact.Table)

	name, ok := contact.Field("name")
	require.True(t, ok)
	require.True(t, name.Required)
	require.Equal(t, coercion.Text, name.Coercion)

	invoice, err := r.Get("invoice")
	require.NoError(t, err)
	due, ok := invoice.Field("amountDue")
	require.True(t, ok)
	require.Equal(t, "amount_due", due.Column)
	require.Equal(t, coercion.Currency, due.Coercion)
	require.Len(t, invoice.Derived, 2)
	require.Equal(t, "0", invoice.Defaults["taxRate"])
	require.Equal(t, 0, invoice.Position("invoiceNumber"))
	require.Equal(t, -1, invoice.Position("missing"))
}

func TestGet_UnknownEntityType(t *testing.T) {
	_, err := Default().Get("spaceship")
	require.ErrorIs(t, err, ErrUnknownEntityType)
}

func TestTranslateStatus(t *testing.T) {
	r := Default()
	require.Equal(t, "sent", r.TranslateStatus("invoice", "Awaiting Payment"))
	require.Equal(t, "in_progress", r.TranslateStatus("job", "dispatched"))
	require.Equal(t, "completed", r.TranslateStatus("job", " DONE "))
	require.Equal(t, "weird_custom_status", r.TranslateStatus("job", "weird_custom_status"))
	require.Equal(t, "weird_custom_status", r.TranslateStatus("contact", "Weird_Custom_Status"))
	require.Equal(t, "draft", r.TranslateStatus("invoice", ""))
}

func TestLoad_RejectsInconsistentSchemas(t *testing.T) {
	cases := map[string]string{
		"bad table": `
schemas:
  - entity_type: thing
    table: "Things; DROP"
    fields: [{key: name}]
`,
		"unknown dedupe key": `
schemas:
  - entity_type: thing
    table: things
    dedupe_eligible: true
    dedupe_keys: [email]
    fields: [{key: name}]
`,
		"derived from text": `
schemas:
  - entity_type: thing
    table: things
    fields: [{key: a}, {key: b, type: currency}]
    derived: [{key: b, op: copy, from: [a]}]
`,
		"unknown type": `
schemas:
  - entity_type: thing
    table: things
    fields: [{key: a, type: money}]
`,
		"duplicate field": `
schemas:
  - entity_type: thing
    table: things
    fields: [{key: a}, {key: a}]
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(doc), nil)
			require.Error(t, err)
		})
	}
}

func TestLoad_DefaultsColumnAndLabel(t *testing.T) {
	r, err := Load([]byte(`
schemas:
  - entity_type: thing
    table: things
    fields: [{key: dueDate, type: date}]
`), []byte(`thing: {Open: open_status}`))
	require.NoError(t, err)

	s, err := r.Get("thing")
	require.NoError(t, err)
	f, _ := s.Field("dueDate")
	require.Equal(t, "due_date", f.Column)
	require.Equal(t, "dueDate", f.Label)
	require.Equal(t, "open_status", r.TranslateStatus("thing", "OPEN"))
}

func TestField_NormalizeMatch(t *testing.T) {
	contact, err := Default().Get("contact")
	require.NoError(t, err)

	email, _ := contact.Field("email")
	require.Equal(t, MatchEmail, email.Match)
	require.Equal(t, "ann@example.com", email.NormalizeMatch("  Ann@Example.COM "))

	phone, _ := contact.Field("phone")
	require.Equal(t, "5551234567", phone.NormalizeMatch("(555) 123-4567"))

	name, _ := contact.Field("name")
	require.Equal(t, MatchExact, name.Match)
	require.Equal(t, "Ann Lee", name.NormalizeMatch(" Ann Lee "))
}
