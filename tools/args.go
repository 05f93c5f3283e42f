package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"chefai/cookbook"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// decodeArgs checks the required properties of schema are present and
// non-null, then decodes raw into v. Empty input is treated as {}.
func decodeArgs(raw json.RawMessage, schema *jsonschema.Schema, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if schema != nil {
		for _, name := range schema.Required {
			f, ok := fields[name]
			if !ok || bytes.Equal(bytes.TrimSpace(f), []byte("null")) {
				return fmt.Errorf("missing required argument %q", name)
			}
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// flexString accepts a JSON string or number. Models are inconsistent about
// quoting quantities.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("expected a string or number")
	}
	if fl, err := strconv.ParseFloat(n.String(), 64); err == nil {
		*f = flexString(strconv.FormatFloat(fl, 'f', -1, 64))
		return nil
	}
	*f = flexString(n.String())
	return nil
}

func (f *flexString) ptr() *string {
	if f == nil {
		return nil
	}
	s := string(*f)
	return &s
}

type ingredientArg struct {
	Name     string     `json:"name"`
	Quantity flexString `json:"quantity"`
	Unit     string     `json:"unit"`
}

func toIngredientRefs(args []ingredientArg) []cookbook.IngredientRef {
	refs := make([]cookbook.IngredientRef, 0, len(args))
	for _, a := range args {
		refs = append(refs, cookbook.IngredientRef{
			Name:     strings.TrimSpace(a.Name),
			Quantity: string(a.Quantity),
			Unit:     strings.TrimSpace(a.Unit),
		})
	}
	return refs
}

func stringProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func ingredientsProp() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: "Ingredients with name, quantity and unit.",
		Items: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":     stringProp("Ingredient name."),
				"quantity": stringProp("Amount as a number, e.g. \"2\" or \"0.5\"."),
				"unit":     stringProp("Unit such as g, ml, cup, pcs."),
			},
			Required: []string{"name"},
		},
	}
}

func stepsProp() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: "Ordered preparation steps.",
		Items:       &jsonschema.Schema{Type: "string"},
	}
}
