package rule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/guildwarden/warden/automod/event"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

const SchemaID = "https://guildwarden.dev/schema/rule-set.json"

func ptr[T any](v T) *T { return &v }

func ref(name string) *jsonschema.Schema {
	return &jsonschema.Schema{Ref: "#/$defs/" + name}
}

func typed(t string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: t}
}

func arrayOf(items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: items}
}

// closed object: no properties beyond the listed ones
func object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// closed object which sets exactly one of its properties
func oneOf(props map[string]*jsonschema.Schema) *jsonschema.Schema {
	s := object(props)
	s.MinProperties = ptr(1)
	s.MaxProperties = ptr(1)
	return s
}

func snowflakeSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "string", Pattern: "^[0-9]+$"},
			{Type: "integer", Minimum: ptr(0.0)},
		},
	}
}

func durationSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		AnyOf: []*jsonschema.Schema{
			{Type: "string", Pattern: `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`},
			{Type: "integer", Minimum: ptr(1.0)},
		},
	}
}

func enum[T ~string](values ...T) *jsonschema.Schema {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return &jsonschema.Schema{Type: "string", Enum: out}
}

func defs() map[string]*jsonschema.Schema {
	integer := typed("integer")
	str := typed("string")
	boolean := typed("boolean")
	rng := object(map[string]*jsonschema.Schema{"lower": integer, "upper": integer}, "lower", "upper")

	userProps := map[string]*jsonschema.Schema{
		"id":         ref("IntegerConstraint"),
		"username":   ref("StringConstraint"),
		"is_bot":     ref("BoolConstraint"),
		"created_at": ref("TimeConstraint"),
	}
	memberProps := map[string]*jsonschema.Schema{
		"nickname":  ref("StringConstraint"),
		"roles":     ref("IDListConstraint"),
		"deaf":      ref("BoolConstraint"),
		"mute":      ref("BoolConstraint"),
		"pending":   ref("BoolConstraint"),
		"boosting":  ref("BoolConstraint"),
		"joined_at": ref("TimeConstraint"),
	}
	counterAction := object(map[string]*jsonschema.Schema{
		"name":  str,
		"scope": enum(CounterScopes...),
	}, "name", "scope")
	roleAction := object(map[string]*jsonschema.Schema{
		"role_id": ref("Snowflake"),
		"reason":  str,
	}, "role_id")

	return map[string]*jsonschema.Schema{
		"Snowflake": snowflakeSchema(),
		"Duration":  durationSchema(),
		"Trigger": {
			AnyOf: []*jsonschema.Schema{
				enum(event.TriggerKinds...),
				{Type: "array", Items: enum(event.TriggerKinds...), MinItems: ptr(1)},
			},
		},
		"IntegerConstraint": oneOf(map[string]*jsonschema.Schema{
			"equals":                integer,
			"not_equals":            integer,
			"greater_than":          integer,
			"greater_than_or_equal": integer,
			"less_than":             integer,
			"less_than_or_equal":    integer,
			"inclusive_between":     rng,
			"exclusive_between":     rng,
			"in":                    arrayOf(integer),
			"not_in":                arrayOf(integer),
		}),
		"BoolConstraint": oneOf(map[string]*jsonschema.Schema{
			"equals":     boolean,
			"not_equals": boolean,
		}),
		"TimeConstraint": oneOf(map[string]*jsonschema.Schema{
			"before":     {Type: "string", Format: "date-time"},
			"after":      {Type: "string", Format: "date-time"},
			"older_than": ref("Duration"),
			"newer_than": ref("Duration"),
		}),
		"IDListConstraint": oneOf(map[string]*jsonschema.Schema{
			"includes":         ref("Snowflake"),
			"does_not_include": ref("Snowflake"),
			"includes_any":     arrayOf(ref("Snowflake")),
			"is_empty":         boolean,
		}),
		"StringConstraint": oneOf(map[string]*jsonschema.Schema{
			"equals":                   str,
			"not_equals":               str,
			"contains":                 str,
			"contains_all":             arrayOf(str),
			"contains_any":             arrayOf(str),
			"does_not_contain":         str,
			"does_not_contain_any":     arrayOf(str),
			"in":                       arrayOf(str),
			"not_in":                   arrayOf(str),
			"starts_with":              str,
			"does_not_start_with":      str,
			"ends_with":                str,
			"does_not_end_with":        str,
			"length":                   ref("IntegerConstraint"),
			"is_uppercase":             boolean,
			"is_lowercase":             boolean,
			"matches_word_list":        {Type: "string", MinLength: ptr(1)},
			"does_not_match_word_list": {Type: "string", MinLength: ptr(1)},
		}),
		"UserConstraint":   oneOf(userProps),
		"MemberConstraint": oneOf(memberProps),
		"MessageConstraint": oneOf(map[string]*jsonschema.Schema{
			"id":                        ref("IntegerConstraint"),
			"channel_id":                ref("IntegerConstraint"),
			"content":                   ref("StringConstraint"),
			"author":                    ref("UserConstraint"),
			"member":                    ref("MemberConstraint"),
			"created_at":                ref("TimeConstraint"),
			"mention_count":             ref("IntegerConstraint"),
			"role_mention_count":        ref("IntegerConstraint"),
			"attachment_count":          ref("IntegerConstraint"),
			"link_count":                ref("IntegerConstraint"),
			"invite_count":              ref("IntegerConstraint"),
			"mentions_everyone":         ref("BoolConstraint"),
			"mentions_over_guild_limit": ref("BoolConstraint"),
		}),
		"CounterConstraint": object(map[string]*jsonschema.Schema{
			"name":   {Type: "string", MinLength: ptr(1)},
			"scope":  enum(CounterScopes...),
			"period": enum(CounterPeriods...),
			"value":  ref("IntegerConstraint"),
		}, "name", "scope", "value"),
		"GuildConstraint": oneOf(map[string]*jsonschema.Schema{
			"id":               ref("IntegerConstraint"),
			"feature_enabled":  enum(GuildFeatures...),
			"channel_disabled": ref("BoolConstraint"),
		}),
		"Condition": func() *jsonschema.Schema {
			s := object(map[string]*jsonschema.Schema{
				"and": arrayOf(ref("Condition")),
				"or":  {Type: "array", Items: ref("Condition"), MinItems: ptr(1)},
				"not": ref("Condition"),
				"at_least": object(map[string]*jsonschema.Schema{
					"min_count":  {Type: "integer", Minimum: ptr(1.0)},
					"conditions": arrayOf(ref("Condition")),
				}, "min_count", "conditions"),
				"message": ref("MessageConstraint"),
				"user":    ref("UserConstraint"),
				"member":  ref("MemberConstraint"),
				"counter": ref("CounterConstraint"),
				"guild":   ref("GuildConstraint"),
			})
			s.MaxProperties = ptr(1)
			return s
		}(),
		"Action": oneOf(map[string]*jsonschema.Schema{
			"reply": object(map[string]*jsonschema.Schema{"content": {Type: "string", MinLength: ptr(1)}}, "content"),
			"send_message": object(map[string]*jsonschema.Schema{
				"channel_id": ref("Snowflake"),
				"content":    {Type: "string", MinLength: ptr(1)},
			}, "content"),
			"delete_message": object(map[string]*jsonschema.Schema{}),
			"ban": object(map[string]*jsonschema.Schema{
				"delete_days": {Type: "integer", Minimum: ptr(0.0), Maximum: ptr(float64(MaxBanDeleteDays))},
				"duration":    ref("Duration"),
				"reason":      str,
			}),
			"kick": object(map[string]*jsonschema.Schema{"reason": str}),
			"mute": object(map[string]*jsonschema.Schema{
				"duration": ref("Duration"),
				"reason":   str,
			}),
			"add_role":         roleAction,
			"remove_role":      roleAction,
			"add_counter":      counterAction,
			"subtract_counter": counterAction,
			"reset_counter":    counterAction,
			"sub_condition": object(map[string]*jsonschema.Schema{
				"condition":    ref("Condition"),
				"actions":      arrayOf(ref("Action")),
				"actions_else": arrayOf(ref("Action")),
			}, "condition", "actions"),
		}),
		"Rule": object(map[string]*jsonschema.Schema{
			"id":              {Type: "string", Format: "uuid"},
			"name":            {Type: "string", MinLength: ptr(1)},
			"enabled":         boolean,
			"trigger":         ref("Trigger"),
			"conditions":      ref("Condition"),
			"fire_on_unknown": boolean,
			"actions":         arrayOf(ref("Action")),
		}, "name", "trigger", "actions"),
	}
}

// Schema describes a rule set document, for external authoring tools.
func Schema() *jsonschema.Schema {
	s := object(map[string]*jsonschema.Schema{
		"id":          {Type: "string", Format: "uuid"},
		"guild_id":    ref("Snowflake"),
		"name":        {Type: "string", MinLength: ptr(1)},
		"description": typed("string"),
		"enabled":     typed("boolean"),
		"editable":    typed("boolean"),
		"author":      typed("string"),
		"category":    typed("string"),
		"rules":       arrayOf(ref("Rule")),
	}, "name", "rules")
	s.Schema = "http://json-schema.org/draft-07/schema#"
	s.ID = SchemaID
	s.Title = "RuleSet"
	s.Defs = defs()
	return s
}

func SchemaJSON() ([]byte, error) {
	return json.MarshalIndent(Schema(), "", "  ")
}

// SchemaError lists every violation found when validating a document against the schema.
type SchemaError struct {
	Violations []string
}

func (e *SchemaError) Error() string {
	return "rule set does not match schema: " + strings.Join(e.Violations, "; ")
}

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	// refs resolve within the document itself, not against the published $id
	s := Schema()
	s.ID = ""
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
})

// ValidateDocument checks a rule set document (or an array of them) against the exported schema, then parses it strictly.
func ValidateDocument(raw []byte) ([]*RuleSet, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling rule set schema: %w", err)
	}

	var docs []json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		docs = []json.RawMessage{raw}
	}
	for i, doc := range docs {
		result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
		if err != nil {
			return nil, fmt.Errorf("validating document %d: %w", i, err)
		}
		if !result.Valid() {
			serr := &SchemaError{}
			for _, desc := range result.Errors() {
				serr.Violations = append(serr.Violations, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
			}
			return nil, serr
		}
	}
	return ParseRuleSets(raw)
}

// IsSchemaError reports whether err came from schema validation rather than from parsing.
func IsSchemaError(err error) bool {
	var serr *SchemaError
	return errors.As(err, &serr)
}
